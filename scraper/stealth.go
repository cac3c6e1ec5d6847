package scraper

// navigatorOverrides runs before any page script, after stealth.JS. It pins
// the properties the target's bot check reads to a plain Korean desktop Chrome.
const navigatorOverrides = `(() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
	Object.defineProperty(navigator, 'languages', { get: () => ['ko-KR', 'ko', 'en-US', 'en'] });
	window.chrome = window.chrome || {};
	window.chrome.runtime = window.chrome.runtime || {};
})();`
