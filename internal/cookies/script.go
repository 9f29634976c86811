package cookies

// detectScript reports whether a cookie surface is currently visible: either
// an element matching the selector set, or a visible block element carrying
// at least 20 characters of consent-flavoured text.
const detectScript = `(function() {
  const SELECTORS = [
    '#onetrust-banner-sdk', '#onetrust-consent-sdk', '#CybotCookiebotDialog',
    '#usercentrics-root', '.cc-window', '.cookie-banner', '.cookie-consent',
    '.cookie-notice', '#cookie-banner', '#cookie-consent', '#cookie-notice',
    '[id*="cookie" i][class*="banner" i]', '[class*="consent" i][role="dialog"]',
    '[role="dialog"][aria-label*="cookie" i]', '[role="alertdialog"]',
    '[data-testid*="cookie" i]', '[data-testid*="consent" i]'
  ];
  const PATTERN = /(cookie|cookies|consent|datenschutz|privacy)/i;

  function visible(el) {
    if (!el || !el.getBoundingClientRect) return false;
    const r = el.getBoundingClientRect();
    if (r.width <= 0 || r.height <= 0) return false;
    const s = window.getComputedStyle(el);
    return s.display !== 'none' && s.visibility !== 'hidden';
  }

  for (const sel of SELECTORS) {
    let found = null;
    try { found = document.querySelector(sel); } catch (e) { continue; }
    if (visible(found)) return true;
  }

  const blocks = document.querySelectorAll('div, section, aside, dialog, footer');
  for (const el of blocks) {
    if (!visible(el)) continue;
    const text = (el.innerText || '').trim();
    if (text.length >= 20 && PATTERN.test(text)) {
      const m = text.match(PATTERN);
      if (m) return true;
    }
  }
  return false;
})()`

// strictSelectors is the known-good vendor accept-button list, tried in
// order in the main document and again inside same-origin iframes.
const strictSelectorsJSON = `[
  "#onetrust-accept-btn-handler",
  "#CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll",
  "#CybotCookiebotDialogBodyButtonAccept",
  "button#uc-btn-accept-banner",
  "[data-testid=\"uc-accept-all-button\"]",
  ".cc-allow",
  ".cc-btn.cc-dismiss",
  ".cc-accept-all",
  "[data-testid*=\"accept-all\"]",
  "button[id*=\"accept-all\" i]",
  "button[class*=\"accept-all\" i]",
  "button[aria-label*=\"accept\" i][aria-label*=\"cookie\" i]"
]`

// strictDismissScript clicks the first visible strict-selector match in the
// main document. Returns the matched selector or "".
const strictDismissScript = `(function(selectors) {
  function visible(el) {
    if (!el) return false;
    const r = el.getBoundingClientRect();
    if (r.width <= 0 || r.height <= 0) return false;
    const s = window.getComputedStyle(el);
    return s.display !== 'none' && s.visibility !== 'hidden';
  }
  for (const sel of selectors) {
    let el = null;
    try { el = document.querySelector(sel); } catch (e) { continue; }
    if (visible(el)) { el.click(); return sel; }
  }
  return '';
})(%s)`

// acceptPhrasesJSON lists the accept-button texts, strongest first.
const acceptPhrasesJSON = `[
  "alle akzeptieren",
  "accept all cookies",
  "accept all",
  "alles akzeptieren",
  "akzeptieren",
  "accept cookies",
  "allow all",
  "zustimmen",
  "ich stimme zu",
  "einverstanden",
  "agree",
  "got it"
]`

// containerDismissScript searches visible cookie-context containers for the
// first button or link matching an accept phrase and clicks it. Returns the
// matched phrase or "".
const containerDismissScript = `(function(phrases) {
  const CONTEXT = /(cookie|consent|datenschutz|privacy|gdpr)/i;

  function visible(el) {
    if (!el) return false;
    const r = el.getBoundingClientRect();
    if (r.width <= 0 || r.height <= 0) return false;
    const s = window.getComputedStyle(el);
    return s.display !== 'none' && s.visibility !== 'hidden';
  }

  function inContext(el) {
    let cur = el;
    for (let depth = 0; cur && depth < 8; depth++) {
      const marker = (cur.id || '') + ' ' + (typeof cur.className === 'string' ? cur.className : '') +
        ' ' + (cur.getAttribute ? (cur.getAttribute('aria-label') || '') : '');
      if (CONTEXT.test(marker)) return true;
      cur = cur.parentElement;
    }
    return false;
  }

  const buttons = document.querySelectorAll('button, a, [role="button"]');
  for (const phrase of phrases) {
    for (const el of buttons) {
      if (!visible(el) || !inContext(el)) continue;
      const label = ((el.innerText || el.textContent || '') + ' ' +
        (el.getAttribute('aria-label') || '')).toLowerCase();
      if (label.includes(phrase)) { el.click(); return phrase; }
    }
  }
  return '';
})(%s)`

// iframeDismissScript applies the strict selectors inside every reachable
// (same-origin) iframe. Cross-origin frames are skipped. Returns
// "selector@@index" or "".
const iframeDismissScript = `(function(selectors) {
  const frames = document.querySelectorAll('iframe');
  for (let i = 0; i < frames.length; i++) {
    let doc = null;
    try { doc = frames[i].contentDocument; } catch (e) { continue; }
    if (!doc) continue;
    for (const sel of selectors) {
      let el = null;
      try { el = doc.querySelector(sel); } catch (e) { continue; }
      if (el) {
        const r = el.getBoundingClientRect();
        if (r.width > 0 && r.height > 0) { el.click(); return sel + '@@' + i; }
      }
    }
  }
  return '';
})(%s)`

// visionLocateScript scores every on-screen accept-phrase node and returns
// the centre of the best one, or null. The score mixes phrase strength,
// cookie-context ancestry up to depth 6, a bonus for sitting in the lower
// 55%% of the viewport, and element area.
const visionLocateScript = `(function(phrases) {
  const CONTEXT = /(cookie|consent|datenschutz|privacy|gdpr)/i;
  const vh = window.innerHeight, vw = window.innerWidth;

  function visible(el, r) {
    if (r.width <= 0 || r.height <= 0) return false;
    if (r.bottom <= 0 || r.right <= 0 || r.top >= vh || r.left >= vw) return false;
    const s = window.getComputedStyle(el);
    return s.display !== 'none' && s.visibility !== 'hidden';
  }

  let best = null;
  let bestScore = 0;
  const nodes = document.querySelectorAll('button, a, [role="button"], input[type="submit"]');
  for (const el of nodes) {
    const r = el.getBoundingClientRect();
    if (!visible(el, r)) continue;
    const label = ((el.innerText || el.textContent || '') + ' ' +
      (el.getAttribute('aria-label') || '')).toLowerCase().trim();
    if (!label) continue;

    let phraseScore = 0;
    for (let p = 0; p < phrases.length; p++) {
      if (label.includes(phrases[p])) { phraseScore = phrases.length - p; break; }
    }
    if (phraseScore === 0) continue;

    let contextScore = 0;
    let cur = el;
    for (let depth = 0; cur && depth < 6; depth++) {
      const marker = (cur.id || '') + ' ' + (typeof cur.className === 'string' ? cur.className : '');
      if (CONTEXT.test(marker)) { contextScore = 6 - depth; break; }
      cur = cur.parentElement;
    }

    const lowerBonus = (r.top + r.height / 2) > vh * 0.45 ? 3 : 0;
    const areaScore = Math.min(r.width * r.height / 4000, 4);
    const score = phraseScore * 4 + contextScore * 2 + lowerBonus + areaScore;
    if (score > bestScore) {
      bestScore = score;
      best = { x: r.left + r.width / 2, y: r.top + r.height / 2, label: label.slice(0, 60) };
    }
  }
  return best;
})(%s)`
