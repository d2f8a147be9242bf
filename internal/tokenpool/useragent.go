package tokenpool

import "math/rand"

// browserUA is one curated, realistic desktop User-Agent. Chrome-family
// UAs carry Sec-Ch-Ua client hints; Firefox/Edge do not.
type browserUA struct {
	value      string
	secChUA    string
	isChromium bool
}

// uaCatalog is a curated set of realistic desktop UAs across the
// Chrome, Firefox and Edge families.
var uaCatalog = []browserUA{
	{
		value:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		secChUA:    `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`,
		isChromium: true,
	},
	{
		value:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		secChUA:    `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`,
		isChromium: true,
	},
	{
		value:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		secChUA:    `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`,
		isChromium: true,
	},
	{
		value:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
		isChromium: false,
	},
	{
		value:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 14.4; rv:125.0) Gecko/20100101 Firefox/125.0",
		isChromium: false,
	},
	{
		value:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
		isChromium: false, // Edge omits Sec-Ch-Ua
	},
}

// randomUA picks a random entry from the catalog.
func randomUA() browserUA {
	return uaCatalog[rand.Intn(len(uaCatalog))]
}
