package executor

// locateScript resolves a mark id to its element, scrolls it into view, and
// returns the settled rectangle plus a stable selector. The selector prefers
// unique attributes and falls back to an nth-of-type chain capped at depth 7.
const locateScript = `(function(id) {
  const el = document.querySelector('[data-ajete-mark="' + id + '"]');
  if (!el) return null;
  el.scrollIntoView({ block: 'center', inline: 'nearest', behavior: 'instant' });

  function attrSelector(el) {
    if (el.id) return '#' + CSS.escape(el.id);
    const testID = el.getAttribute('data-testid');
    if (testID) return '[data-testid="' + CSS.escape(testID) + '"]';
    if (el.name && el.tagName !== 'META') {
      const sel = el.tagName.toLowerCase() + '[name="' + CSS.escape(el.name) + '"]';
      if (document.querySelectorAll(sel).length === 1) return sel;
    }
    const placeholder = el.getAttribute('placeholder');
    if (placeholder) {
      const sel = '[placeholder="' + CSS.escape(placeholder) + '"]';
      if (document.querySelectorAll(sel).length === 1) return sel;
    }
    if (el.tagName === 'A' && el.getAttribute('href')) {
      const sel = 'a[href="' + CSS.escape(el.getAttribute('href')) + '"]';
      if (document.querySelectorAll(sel).length === 1) return sel;
    }
    const aria = el.getAttribute('aria-label');
    if (aria) {
      const sel = el.tagName.toLowerCase() + '[aria-label="' + CSS.escape(aria) + '"]';
      if (document.querySelectorAll(sel).length === 1) return sel;
    }
    return null;
  }

  function nthChain(el) {
    const parts = [];
    let cur = el;
    for (let depth = 0; cur && cur !== document.documentElement && depth < 7; depth++) {
      const tag = cur.tagName.toLowerCase();
      let nth = 1;
      let sib = cur.previousElementSibling;
      while (sib) {
        if (sib.tagName === cur.tagName) nth++;
        sib = sib.previousElementSibling;
      }
      parts.unshift(tag + ':nth-of-type(' + nth + ')');
      const attr = cur.parentElement ? attrSelector(cur.parentElement) : null;
      if (attr) { parts.unshift(attr); break; }
      cur = cur.parentElement;
    }
    return parts.join(' > ');
  }

  function fillable(el) {
    const tag = el.tagName.toLowerCase();
    if (tag === 'textarea') return true;
    if (tag === 'input') {
      const t = (el.type || 'text').toLowerCase();
      return !['button', 'submit', 'reset', 'hidden', 'checkbox', 'radio', 'image', 'file'].includes(t);
    }
    if (el.isContentEditable) return true;
    const role = el.getAttribute('role');
    return role === 'textbox' || role === 'searchbox';
  }

  const r = el.getBoundingClientRect();
  return {
    selector: attrSelector(el) || nthChain(el),
    rect: { x: r.left, y: r.top, w: r.width, h: r.height },
    fillable: fillable(el)
  };
})(%q)`

// nearestFillableScript finds the visible fillable field closest to a point
// and marks it for a follow-up locate. Returns its mark-style handle or null.
const nearestFillableScript = `(function(cx, cy) {
  function visible(el) {
    const r = el.getBoundingClientRect();
    if (r.width <= 0 || r.height <= 0) return false;
    const s = window.getComputedStyle(el);
    return s.display !== 'none' && s.visibility !== 'hidden';
  }

  const fields = document.querySelectorAll(
    'textarea, input, [contenteditable="true"], [role="textbox"], [role="searchbox"]');
  let best = null;
  let bestDist = Infinity;
  for (const el of fields) {
    if (el.tagName === 'INPUT') {
      const t = (el.type || 'text').toLowerCase();
      if (['button', 'submit', 'reset', 'hidden', 'checkbox', 'radio', 'image', 'file'].includes(t)) continue;
    }
    if (!visible(el)) continue;
    const r = el.getBoundingClientRect();
    const dx = (r.left + r.width / 2) - cx;
    const dy = (r.top + r.height / 2) - cy;
    const dist = dx * dx + dy * dy;
    if (dist < bestDist) { bestDist = dist; best = el; }
  }
  if (!best) return null;
  best.setAttribute('data-ajete-mark', '__field__');
  return '__field__';
})(%f, %f)`

// clearFieldScript empties the focused field so typing starts clean.
const clearFieldScript = `(function(id) {
  const el = document.querySelector('[data-ajete-mark="' + id + '"]');
  if (!el) return false;
  if (el.isContentEditable) {
    el.textContent = '';
  } else {
    el.value = '';
  }
  el.dispatchEvent(new Event('input', { bubbles: true }));
  return true;
})(%q)`
