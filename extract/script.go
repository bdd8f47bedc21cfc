package extract

// harvestJS is evaluated in the page with the profile's selector set
// and next-control vocabulary as arguments. It returns one JSON payload
// holding every visible card's text fields plus the pagination metadata,
// so a page costs a single CDP round trip.
//
// Selector lookups are individually guarded: a bad or missing selector
// degrades that field to null instead of killing the whole harvest, and
// a throwing card contributes an empty object rather than aborting its
// siblings.
const harvestJS = `(sel, vocab) => {
	const text = (root, selector) => {
		if (!selector) return null;
		try {
			const el = root.querySelector(selector);
			const t = el ? el.textContent.trim() : '';
			return t || null;
		} catch (e) { return null; }
	};
	const texts = (root, selector) => {
		if (!selector) return [];
		try {
			return Array.from(root.querySelectorAll(selector))
				.map(el => el.textContent.trim())
				.filter(t => t);
		} catch (e) { return []; }
	};
	const attr = (root, selector, names) => {
		if (!selector) return null;
		try {
			const el = root.querySelector(selector);
			if (!el) return null;
			for (const n of names) {
				const v = el.getAttribute(n);
				if (v) return v;
			}
			return null;
		} catch (e) { return null; }
	};
	const visible = (el) => {
		const rect = el.getBoundingClientRect();
		if (rect.width <= 0 || rect.height <= 0) return false;
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') return false;
		if (style.opacity !== '' && parseFloat(style.opacity) === 0) return false;
		return true;
	};

	const items = [];
	let nodes = [];
	try { nodes = Array.from(document.querySelectorAll(sel.card)); } catch (e) {}
	for (const node of nodes) {
		if (!visible(node)) continue;
		try {
			const prices = texts(node, sel.price);
			const regular = text(node, sel.regular_price);
			if (regular) prices.push(regular);

			let link = attr(node, sel.link, ['href']);
			if (!link && node.tagName === 'A') link = node.getAttribute('href');

			items.push({
				name: text(node, sel.name),
				brand: text(node, sel.brand),
				sku: attr(node, sel.sku, ['data-product-code', 'data-sku', 'data-code', 'data-id']) || text(node, sel.sku),
				prices: prices,
				unitPrice: text(node, sel.unit_price),
				unitLabel: text(node, sel.unit_label),
				link: link,
				image: attr(node, sel.image, ['src', 'data-src', 'data-lazy-src', 'data-original']),
				category: text(node, sel.category),
			});
		} catch (e) {
			items.push({});
		}
	}

	const meta = {
		activePage: 0,
		maxPageSeen: 0,
		hasPagination: false,
		hasNext: false,
		nextDisabled: false,
		nextHref: null,
		resultsCountText: null,
		emptyStateText: null,
	};
	try {
		let scope = document;
		if (sel.pagination) {
			const pag = document.querySelector(sel.pagination);
			if (pag) { scope = pag; meta.hasPagination = true; }
		}

		if (sel.page_link) {
			for (const a of scope.querySelectorAll(sel.page_link)) {
				const n = parseInt(a.textContent.trim(), 10);
				if (!isNaN(n)) {
					meta.hasPagination = true;
					if (n > meta.maxPageSeen) meta.maxPageSeen = n;
				}
			}
		}

		let active = null;
		if (sel.active_page) active = scope.querySelector(sel.active_page);
		if (!active) active = scope.querySelector('[aria-current="page"]');
		if (active) {
			const n = parseInt(active.textContent.trim(), 10);
			if (!isNaN(n)) { meta.activePage = n; meta.hasPagination = true; }
		}

		const disabled = (el) => {
			if (el.disabled) return true;
			if (el.getAttribute('aria-disabled') === 'true') return true;
			const cls = (el.className || '') + '';
			return /\bdisabled\b|\binactive\b/i.test(cls);
		};
		const matchesVocab = (el) => {
			const label = ((el.getAttribute('aria-label') || '') + ' ' + el.textContent).trim().toLowerCase();
			return vocab.some(v => v && label.includes(v));
		};

		let next = null;
		if (sel.next) next = scope.querySelector(sel.next);
		if (!next) next = scope.querySelector('a[rel="next"], link[rel="next"]');
		if (!next) {
			for (const el of scope.querySelectorAll('a, button')) {
				if (matchesVocab(el)) { next = el; break; }
			}
		}
		if (next) {
			meta.hasPagination = true;
			meta.hasNext = true;
			meta.nextDisabled = disabled(next);
			meta.nextHref = next.getAttribute('href') || null;
		}

		meta.resultsCountText = text(document, sel.results_count);
		const emptyEl = sel.empty_state ? document.querySelector(sel.empty_state) : null;
		if (emptyEl && visible(emptyEl)) {
			meta.emptyStateText = emptyEl.textContent.trim() || null;
		}
	} catch (e) {}

	return { items: items, meta: meta };
}`

// probeJS is the cheap page-state read used by the readiness poller:
// visible card count, loader visibility, results-count text, and
// visible empty-state text. Kept separate from harvestJS so polling
// does not pay the full per-card walk each attempt.
const probeJS = `(sel) => {
	const visible = (el) => {
		const rect = el.getBoundingClientRect();
		if (rect.width <= 0 || rect.height <= 0) return false;
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') return false;
		if (style.opacity !== '' && parseFloat(style.opacity) === 0) return false;
		return true;
	};
	const state = {
		cardCount: 0,
		loaderVisible: false,
		activePage: 0,
		resultsCountText: null,
		emptyStateText: null,
	};
	try {
		for (const node of document.querySelectorAll(sel.card)) {
			if (visible(node)) state.cardCount++;
		}
	} catch (e) {}
	try {
		let active = null;
		if (sel.active_page) active = document.querySelector(sel.active_page);
		if (!active) active = document.querySelector('[aria-current="page"]');
		if (active) {
			const n = parseInt(active.textContent.trim(), 10);
			if (!isNaN(n)) state.activePage = n;
		}
	} catch (e) {}
	try {
		if (sel.loader) {
			for (const node of document.querySelectorAll(sel.loader)) {
				if (visible(node)) { state.loaderVisible = true; break; }
			}
		}
	} catch (e) {}
	try {
		if (sel.results_count) {
			const el = document.querySelector(sel.results_count);
			if (el) state.resultsCountText = el.textContent.trim() || null;
		}
	} catch (e) {}
	try {
		if (sel.empty_state) {
			const el = document.querySelector(sel.empty_state);
			if (el && visible(el)) state.emptyStateText = el.textContent.trim() || null;
		}
	} catch (e) {}
	return state;
}`
