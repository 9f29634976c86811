package perception

// harvestScript runs inside the page. It waits for the DOM to go quiet,
// walks the document and every open shadow root, scores interactability,
// filters invisible and tiny nodes, drops weak descendants of strong
// ancestors, and returns the surviving candidates. Each candidate element is
// tagged with a data-ajete-cand attribute so a later pass can address it.
//
// The script is self-contained: ranking, overlap dedup and mark assignment
// happen on the Go side so they stay unit testable.
const harvestScript = `(function() {
  const OVERLAY_ID = '__ajete_overlay__';
  const QUIET_MS = %d;
  const CAP_MS = %d;
  const NATIVE_TAGS = new Set(['a', 'button', 'input', 'select', 'textarea', 'option', 'summary']);
  const ARIA_ROLES = new Set(['button', 'link', 'checkbox', 'radio', 'tab', 'menuitem', 'menuitemcheckbox',
    'menuitemradio', 'option', 'switch', 'combobox', 'textbox', 'searchbox', 'slider', 'spinbutton']);
  const HINT_CLASS = /(^|[-_\s])(btn|button|cta|link|nav|menu|tab)([-_\s]|$)/i;

  function waitForQuiet() {
    return new Promise((resolve) => {
      let timer = setTimeout(resolve, QUIET_MS);
      const cap = setTimeout(() => { observer.disconnect(); clearTimeout(timer); resolve(); }, CAP_MS);
      const observer = new MutationObserver(() => {
        clearTimeout(timer);
        timer = setTimeout(() => { observer.disconnect(); clearTimeout(cap); resolve(); }, QUIET_MS);
      });
      observer.observe(document.documentElement, { childList: true, subtree: true, attributes: true });
    });
  }

  function accessibleText(el) {
    const aria = el.getAttribute && el.getAttribute('aria-label');
    if (aria && aria.trim()) return aria.trim();
    const text = (el.innerText || el.textContent || '').trim();
    return text;
  }

  function interactiveScore(el) {
    const tag = el.tagName ? el.tagName.toLowerCase() : '';
    if (el.disabled || el.getAttribute('aria-disabled') === 'true' ||
        el.getAttribute('aria-hidden') === 'true') return 0;
    if (tag === 'input' && (el.getAttribute('type') || '').toLowerCase() === 'hidden') return 0;
    if (NATIVE_TAGS.has(tag)) return 4;
    const role = (el.getAttribute('role') || '').toLowerCase();
    if (ARIA_ROLES.has(role)) return 3;
    if (typeof el.onclick === 'function' || el.hasAttribute('onclick')) return 2;
    const tabindex = el.getAttribute('tabindex');
    if (tabindex !== null && parseInt(tabindex, 10) >= 0) return 2;
    const style = window.getComputedStyle(el);
    if (style.cursor === 'pointer') {
      const cls = el.className && typeof el.className === 'string' ? el.className : '';
      const hasDataHint = el.hasAttribute('data-action') || el.hasAttribute('data-toggle') ||
        el.hasAttribute('data-target') || el.hasAttribute('data-href') || el.hasAttribute('data-testid');
      if (HINT_CLASS.test(cls) || hasDataHint || accessibleText(el).length > 0) return 1;
    }
    return 0;
  }

  function isVisible(el, rect) {
    if (rect.width <= 0 || rect.height <= 0) return false;
    const style = window.getComputedStyle(el);
    if (style.display === 'none' || style.visibility === 'hidden' || style.pointerEvents === 'none') return false;
    const vw = window.innerWidth, vh = window.innerHeight;
    if (rect.right <= 0 || rect.bottom <= 0 || rect.left >= vw || rect.top >= vh) return false;
    return true;
  }

  function collect() {
    const out = [];
    const scores = new Map();
    const queue = [document.documentElement];
    while (queue.length > 0) {
      const node = queue.shift();
      if (!node) continue;
      if (node.id === OVERLAY_ID) continue;
      if (node.shadowRoot) {
        for (const child of node.shadowRoot.children) queue.push(child);
      }
      if (node.children) {
        for (const child of node.children) queue.push(child);
      }
      if (!(node instanceof Element)) continue;
      const score = interactiveScore(node);
      scores.set(node, score);
      if (score <= 0) continue;
      const rect = node.getBoundingClientRect();
      if (!isVisible(node, rect)) continue;
      const tag = node.tagName.toLowerCase();
      const native = NATIVE_TAGS.has(tag);
      if (!native && (rect.width < 18 || rect.height < 18 || rect.width * rect.height < 320)) continue;
      out.push({ node: node, tag: tag, score: score, rect: rect, native: native });
    }

    // Weak candidates duplicate a strong ancestor; depth bounded.
    const strongAncestor = (el) => {
      let cur = el.parentElement || (el.getRootNode() instanceof ShadowRoot ? el.getRootNode().host : null);
      for (let depth = 0; cur && depth < 8; depth++) {
        const s = scores.has(cur) ? scores.get(cur) : interactiveScore(cur);
        if (s >= 2) return true;
        cur = cur.parentElement || (cur.getRootNode() instanceof ShadowRoot ? cur.getRootNode().host : null);
      }
      return false;
    };

    const result = [];
    let idx = 0;
    for (const cand of out) {
      if (cand.score <= 2 && strongAncestor(cand.node)) continue;
      cand.node.setAttribute('data-ajete-cand', String(idx));
      const el = cand.node;
      result.push({
        index: idx,
        tag: cand.tag,
        role: el.getAttribute('role') || '',
        text: accessibleText(el).slice(0, 160),
        ariaLabel: el.getAttribute('aria-label') || '',
        title: el.getAttribute('title') || '',
        href: el.getAttribute('href') || '',
        score: cand.score,
        native: cand.native,
        rect: { x: cand.rect.left, y: cand.rect.top, w: cand.rect.width, h: cand.rect.height }
      });
      idx++;
    }
    return { viewportW: window.innerWidth, viewportH: window.innerHeight, candidates: result };
  }

  return waitForQuiet().then(collect);
})()`

// renderScript draws the single overlay container: a red outline per mark
// and an integer label at the Go-computed position. It also promotes the
// accepted candidates' data-ajete-cand attribute to data-ajete-mark and
// strips stale marks from everything else.
const renderScript = `(function(marks) {
  const OVERLAY_ID = '__ajete_overlay__';
  const old = document.getElementById(OVERLAY_ID);
  if (old) old.remove();

  document.querySelectorAll('[data-ajete-mark]').forEach((el) => el.removeAttribute('data-ajete-mark'));

  const byCand = {};
  document.querySelectorAll('[data-ajete-cand]').forEach((el) => {
    byCand[el.getAttribute('data-ajete-cand')] = el;
    el.removeAttribute('data-ajete-cand');
  });

  const overlay = document.createElement('div');
  overlay.id = OVERLAY_ID;
  overlay.style.cssText = 'position:fixed;inset:0;z-index:2147483646;pointer-events:none;';
  for (const m of marks) {
    const el = byCand[String(m.candIndex)];
    if (el) el.setAttribute('data-ajete-mark', String(m.id));

    const box = document.createElement('div');
    box.style.cssText = 'position:fixed;border:2px solid #e11;border-radius:2px;' +
      'left:' + m.rect.x + 'px;top:' + m.rect.y + 'px;width:' + m.rect.w + 'px;height:' + m.rect.h + 'px;';
    overlay.appendChild(box);

    const label = document.createElement('div');
    label.textContent = String(m.id);
    label.style.cssText = 'position:fixed;background:#e11;color:#fff;font:bold 11px/14px monospace;' +
      'padding:1px 3px;border-radius:2px;' +
      'left:' + m.label.x + 'px;top:' + m.label.y + 'px;';
    overlay.appendChild(label);
  }
  document.documentElement.appendChild(overlay);
  return marks.length;
})(%s)`

// toggleScript flips overlay visibility without re-running discovery.
const toggleScript = `(function(show) {
  const overlay = document.getElementById('__ajete_overlay__');
  if (!overlay) return false;
  overlay.style.display = show ? '' : 'none';
  return true;
})(%t)`
