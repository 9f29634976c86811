// Package browser owns the chromedp browser lifecycle: allocator, persona
// emulation, the active tab, navigation, capture, and tab-follow events.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ard14n/AJETE/api/schemas"
	"github.com/ard14n/AJETE/internal/config"
)

// TabEventKind classifies tab lifecycle notifications.
type TabEventKind string

const (
	TabOpened  TabEventKind = "opened"
	TabClosed  TabEventKind = "closed"
	TabCrashed TabEventKind = "crashed"
)

// TabEvent is delivered to the controller between suspension points.
type TabEvent struct {
	Kind     TabEventKind
	TargetID target.ID
}

// Session is one browser process with a single active page. All page
// mutation goes through the context returned by Active.
type Session struct {
	cfg     config.BrowserConfig
	persona schemas.Persona
	logger  *zap.Logger

	allocCancel context.CancelFunc
	rootCtx     context.Context
	rootCancel  context.CancelFunc

	mu       sync.Mutex
	active   context.Context
	cancels  map[target.ID]context.CancelFunc
	activeID target.ID
	pages    map[target.ID]bool
	closed   bool

	events chan TabEvent
}

// NewSession prepares a session for the given persona. Launch must be called
// before any page operation.
func NewSession(cfg config.BrowserConfig, persona schemas.Persona, logger *zap.Logger) *Session {
	return &Session{
		cfg:     cfg,
		persona: persona,
		logger:  logger.Named("browser"),
		cancels: make(map[target.ID]context.CancelFunc),
		pages:   make(map[target.ID]bool),
		events:  make(chan TabEvent, 16),
	}
}

// Launch starts the browser, opens the initial page, applies persona
// emulation, and installs the tab-lifecycle watchers.
func (s *Session) Launch(ctx context.Context, headless bool) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(int(s.persona.Width), int(s.persona.Height)),
		chromedp.Flag("lang", s.persona.Locale),
	)
	if s.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(s.cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	s.allocCancel = allocCancel

	rootCtx, rootCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	s.rootCtx = rootCtx
	s.rootCancel = rootCancel

	if err := chromedp.Run(rootCtx); err != nil {
		allocCancel()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	s.mu.Lock()
	s.active = rootCtx
	if t := chromedp.FromContext(rootCtx).Target; t != nil {
		s.activeID = t.TargetID
		s.pages[t.TargetID] = true
	}
	s.mu.Unlock()

	if err := s.applyPersona(rootCtx); err != nil {
		s.logger.Warn("Persona emulation incomplete.", zap.Error(err))
	}

	s.installTabWatchers()
	return nil
}

// applyPersona sets the emulated device metrics, locale, timezone, and the
// reduced-motion media feature.
func (s *Session) applyPersona(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		if err := emulation.SetDeviceMetricsOverride(
			s.persona.Width, s.persona.Height, s.persona.DeviceScale, false,
		).Do(c); err != nil {
			return fmt.Errorf("device metrics: %w", err)
		}
		if err := emulation.SetLocaleOverride().WithLocale(s.persona.Locale).Do(c); err != nil {
			return fmt.Errorf("locale: %w", err)
		}
		if err := emulation.SetTimezoneOverride(s.persona.Timezone).Do(c); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
		if s.persona.ReducedMotion {
			if err := emulation.SetEmulatedMedia().WithFeatures([]*emulation.MediaFeature{
				{Name: "prefers-reduced-motion", Value: "reduce"},
			}).Do(c); err != nil {
				return fmt.Errorf("reduced motion: %w", err)
			}
		}
		return nil
	}))
}

// installTabWatchers subscribes to browser target events. Popups, closes and
// crashes are forwarded to the controller, which decides about switching.
func (s *Session) installTabWatchers() {
	if err := chromedp.Run(s.rootCtx, chromedp.ActionFunc(func(c context.Context) error {
		return target.SetDiscoverTargets(true).Do(c)
	})); err != nil {
		s.logger.Warn("Could not enable target discovery; tab following disabled.", zap.Error(err))
		return
	}

	chromedp.ListenBrowser(s.rootCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *target.EventTargetCreated:
			if e.TargetInfo.Type != "page" || e.TargetInfo.OpenerID == "" {
				return
			}
			s.mu.Lock()
			known := s.pages[e.TargetInfo.TargetID]
			if !known {
				s.pages[e.TargetInfo.TargetID] = true
			}
			s.mu.Unlock()
			if !known {
				s.postEvent(TabEvent{Kind: TabOpened, TargetID: e.TargetInfo.TargetID})
			}
		case *target.EventTargetDestroyed:
			s.mu.Lock()
			known := s.pages[e.TargetID]
			delete(s.pages, e.TargetID)
			s.mu.Unlock()
			if known {
				s.postEvent(TabEvent{Kind: TabClosed, TargetID: e.TargetID})
			}
		case *target.EventTargetCrashed:
			s.postEvent(TabEvent{Kind: TabCrashed, TargetID: e.TargetID})
		}
	})
}

func (s *Session) postEvent(ev TabEvent) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("Tab event dropped; channel full.", zap.String("kind", string(ev.Kind)))
	}
}

// Events exposes the tab lifecycle stream. Drained by the loop between
// suspension points.
func (s *Session) Events() <-chan TabEvent { return s.events }

// Active returns the context of the current page. Mutated only via SwitchTo.
func (s *Session) Active() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ActiveID returns the target id of the current page.
func (s *Session) ActiveID() target.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// SurvivingPage returns any known page other than the given one.
func (s *Session) SurvivingPage(except target.ID) (target.ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.pages {
		if id != except {
			return id, true
		}
	}
	return "", false
}

// SwitchTo makes the given target the active page, brings it to front, and
// applies persona emulation to it. The previous page context stays alive
// until its target closes.
func (s *Session) SwitchTo(id target.ID) error {
	tabCtx, tabCancel := chromedp.NewContext(s.rootCtx, chromedp.WithTargetID(id))

	if err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(c context.Context) error {
		return page.BringToFront().Do(c)
	})); err != nil {
		tabCancel()
		return fmt.Errorf("failed to attach to tab %s: %w", id, err)
	}

	if err := s.applyPersona(tabCtx); err != nil {
		s.logger.Debug("Persona emulation on new tab incomplete.", zap.Error(err))
	}

	s.mu.Lock()
	s.active = tabCtx
	s.activeID = id
	s.pages[id] = true
	if old, ok := s.cancels[id]; ok {
		old()
	}
	s.cancels[id] = tabCancel
	s.mu.Unlock()

	s.logger.Info("Switched active page.", zap.String("target_id", string(id)))
	return nil
}

// Navigate loads url on the active page, bounded by the navigation timeout.
// Callers treat errors as warnings and continue.
func (s *Session) Navigate(url string) error {
	navCtx, cancel := context.WithTimeout(s.Active(), s.cfg.NavigationTimeout)
	defer cancel()
	return chromedp.Run(navCtx, chromedp.Navigate(url))
}

// Location returns the active page url and title.
func (s *Session) Location(ctx context.Context) (url, title string) {
	locCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := chromedp.Run(locCtx, chromedp.Location(&url), chromedp.Title(&title)); err != nil {
		s.logger.Debug("Could not read page location.", zap.Error(err))
	}
	return url, title
}

// Screenshot captures the active viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	shotCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	var buf []byte
	if err := chromedp.Run(shotCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// PrintToPDF renders the given HTML document to PDF bytes using a scratch
// tab. Used by the report builder.
func (s *Session) PrintToPDF(ctx context.Context, html string) ([]byte, error) {
	pdfCtx, cancel := chromedp.NewContext(s.rootCtx)
	defer cancel()

	runCtx, runCancel := context.WithTimeout(pdfCtx, 30*time.Second)
	defer runCancel()

	var buf []byte
	err := chromedp.Run(runCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(c context.Context) error {
			frameTree, err := page.GetFrameTree().Do(c)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(c)
		}),
		chromedp.ActionFunc(func(c context.Context) error {
			data, _, err := page.PrintToPDF().WithPrintBackground(true).Do(c)
			buf = data
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("pdf render failed: %w", err)
	}
	return buf, nil
}

// Close tears the browser down. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancels := make([]context.CancelFunc, 0, len(s.cancels))
	for _, c := range s.cancels {
		cancels = append(cancels, c)
	}
	s.mu.Unlock()

	for _, c := range cancels {
		c()
	}
	if s.rootCancel != nil {
		s.rootCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}
