package artifacts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ard14n/AJETE/api/schemas"
)

// ReplayOp is the intermediate representation of one replay instruction.
// Script generation and its tests share this shape so the emitted program
// can be verified without compiling it.
type ReplayOp struct {
	Kind     schemas.TraceKind
	URL      string
	Selector string
	X, Y     float64
	HasPoint bool
	Value    string
	WaitMs   int
	DeltaY   float64
	Note     string
}

// OpsFromTrace lowers a trace document into replay ops. The navigation to
// the start URL is made explicit as the first op unless the trace already
// recorded it; tab switches survive as annotations because the replay runs
// in a single tab.
func OpsFromTrace(doc TraceDocument) []ReplayOp {
	ops := make([]ReplayOp, 0, len(doc.Steps)+1)
	if doc.StartURL != "" && (len(doc.Steps) == 0 || doc.Steps[0].Kind != schemas.TraceGoto) {
		ops = append(ops, ReplayOp{Kind: schemas.TraceGoto, URL: doc.StartURL})
	}
	for _, step := range doc.Steps {
		switch step.Kind {
		case schemas.TraceGoto:
			ops = append(ops, ReplayOp{Kind: schemas.TraceGoto, URL: step.URL, Note: step.Note})
		case schemas.TraceClick:
			ops = append(ops, ReplayOp{
				Kind: schemas.TraceClick, Selector: step.Selector,
				X: step.X, Y: step.Y, HasPoint: step.HasPoint, Note: step.Note,
			})
		case schemas.TraceType:
			ops = append(ops, ReplayOp{
				Kind: schemas.TraceType, Selector: step.Selector, Value: step.Value,
				X: step.X, Y: step.Y, HasPoint: step.HasPoint, Note: step.Note,
			})
		case schemas.TraceScroll:
			ops = append(ops, ReplayOp{Kind: schemas.TraceScroll, DeltaY: step.DeltaY})
		case schemas.TraceWait:
			ops = append(ops, ReplayOp{Kind: schemas.TraceWait, WaitMs: step.WaitMs})
		case schemas.TraceTabSwitch:
			ops = append(ops, ReplayOp{Kind: schemas.TraceTabSwitch, URL: step.URL, Note: step.Note})
		}
	}
	return ops
}

// RenderReplayScript emits a standalone chromedp program that repeats the
// journey deterministically. All strings pass through strconv.Quote.
func RenderReplayScript(doc TraceDocument) string {
	ops := OpsFromTrace(doc)

	var b strings.Builder
	fmt.Fprintf(&b, "// Replay of run %s, recorded %s.\n",
		doc.RunID, doc.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	b.WriteString("//\n// Build and run this file on its own; it drives a fresh browser through\n")
	b.WriteString("// the recorded interactions.\npackage main\n\n")
	b.WriteString("import (\n\t\"context\"\n\t\"log\"\n\t\"time\"\n\n\t\"github.com/chromedp/chromedp\"\n)\n\n")
	b.WriteString("func main() {\n")
	b.WriteString("\tallocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(),\n")
	b.WriteString("\t\tappend(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag(\"headless\", false))...)\n")
	b.WriteString("\tdefer cancelAlloc()\n")
	b.WriteString("\tctx, cancel := chromedp.NewContext(allocCtx)\n")
	b.WriteString("\tdefer cancel()\n\n")

	for _, op := range ops {
		writeOp(&b, op)
	}

	b.WriteString("\tlog.Println(\"replay complete\")\n")
	b.WriteString("}\n\n")
	b.WriteString("func must(err error) {\n\tif err != nil {\n\t\tlog.Fatal(err)\n\t}\n}\n")
	return b.String()
}

func writeOp(b *strings.Builder, op ReplayOp) {
	if op.Note != "" {
		fmt.Fprintf(b, "\t// %s\n", strings.ReplaceAll(op.Note, "\n", " "))
	}
	switch op.Kind {
	case schemas.TraceGoto:
		fmt.Fprintf(b, "\tmust(chromedp.Run(ctx, chromedp.Navigate(%s)))\n", strconv.Quote(op.URL))
		b.WriteString("\tmust(chromedp.Run(ctx, chromedp.Sleep(2*time.Second)))\n")
	case schemas.TraceClick:
		if op.Selector != "" {
			fmt.Fprintf(b, "\tmust(chromedp.Run(ctx, chromedp.Click(%s, chromedp.ByQuery)))\n",
				strconv.Quote(op.Selector))
		} else if op.HasPoint {
			fmt.Fprintf(b, "\tmust(chromedp.Run(ctx, chromedp.MouseClickXY(%g, %g)))\n", op.X, op.Y)
		}
	case schemas.TraceType:
		if op.Selector != "" {
			fmt.Fprintf(b, "\tmust(chromedp.Run(ctx, chromedp.Click(%s, chromedp.ByQuery)))\n",
				strconv.Quote(op.Selector))
			fmt.Fprintf(b, "\tmust(chromedp.Run(ctx, chromedp.SendKeys(%s, %s, chromedp.ByQuery)))\n",
				strconv.Quote(op.Selector), strconv.Quote(op.Value))
		} else if op.HasPoint {
			fmt.Fprintf(b, "\tmust(chromedp.Run(ctx, chromedp.MouseClickXY(%g, %g)))\n", op.X, op.Y)
			fmt.Fprintf(b, "\tmust(chromedp.Run(ctx, chromedp.SendKeys(\"body\", %s, chromedp.ByQuery)))\n",
				strconv.Quote(op.Value))
		}
	case schemas.TraceScroll:
		fmt.Fprintf(b, "\tmust(chromedp.Run(ctx, chromedp.Evaluate(%s, nil)))\n",
			strconv.Quote(fmt.Sprintf("window.scrollBy(0, %g)", op.DeltaY)))
	case schemas.TraceWait:
		fmt.Fprintf(b, "\tmust(chromedp.Run(ctx, chromedp.Sleep(%d*time.Millisecond)))\n", op.WaitMs)
	case schemas.TraceTabSwitch:
		fmt.Fprintf(b, "\t// tab switch to %s happened here; replay continues in the same tab\n", op.URL)
	}
}
