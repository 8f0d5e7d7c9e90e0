package config

// Vertical names used as keys in the feeds map. The canonical enum lives in
// internal/news; config only deals in strings.
const (
	VerticalCrypto = "crypto"
	VerticalStocks = "stocks"
	VerticalSports = "sports"
)

// DefaultFeeds returns the built-in RSS source list per vertical, used when
// the config file does not override poller.feeds.
func DefaultFeeds() map[string][]FeedSource {
	return map[string][]FeedSource{
		VerticalCrypto: {
			{Name: "CoinDesk", URL: "https://www.coindesk.com/arc/outboundfeeds/rss/"},
			{Name: "Cointelegraph", URL: "https://cointelegraph.com/rss"},
			{Name: "Decrypt", URL: "https://decrypt.co/feed"},
			{Name: "CryptoSlate", URL: "https://cryptoslate.com/feed/"},
			{Name: "Bitcoin Magazine", URL: "https://bitcoinmagazine.com/.rss/full/"},
			{Name: "The Block", URL: "https://www.theblock.co/rss.xml"},
			{Name: "NewsBTC", URL: "https://www.newsbtc.com/feed/"},
			{Name: "CryptoNews", URL: "https://cryptonews.com/news/feed/"},
		},
		VerticalStocks: {
			{Name: "MarketWatch", URL: "https://www.marketwatch.com/rss/topstories"},
			{Name: "Bloomberg Markets", URL: "https://feeds.bloomberg.com/markets/news.rss"},
			{Name: "CNBC Markets", URL: "https://www.cnbc.com/id/10000664/device/rss/rss.html"},
			{Name: "Wall Street Journal", URL: "https://feeds.a.dj.com/rss/RSSMarketsMain.xml"},
			{Name: "Yahoo Finance", URL: "https://finance.yahoo.com/news/rssindex"},
			{Name: "Seeking Alpha", URL: "https://seekingalpha.com/feed.xml"},
			{Name: "Benzinga", URL: "https://www.benzinga.com/feed"},
		},
		VerticalSports: {
			{Name: "ESPN", URL: "https://www.espn.com/espn/rss/news"},
			{Name: "Bleacher Report", URL: "https://bleacherreport.com/articles/feed"},
			{Name: "CBS Sports", URL: "https://www.cbssports.com/rss/headlines"},
			{Name: "Yahoo Sports", URL: "https://sports.yahoo.com/rss/"},
			{Name: "Sports Handle", URL: "https://sportshandle.com/feed/"},
			{Name: "The Lines", URL: "https://www.thelines.com/feed/"},
		},
	}
}

// DefaultTickerSources returns the built-in symbol-specific stock feed
// templates used by the on-demand ticker fetch path.
func DefaultTickerSources() []TickerSource {
	return []TickerSource{
		{Name: "Yahoo Finance", Template: "https://finance.yahoo.com/rss/headline?s="},
		{Name: "MarketWatch", Template: "https://www.marketwatch.com/rss/stock/"},
		{Name: "Seeking Alpha", Template: "https://seekingalpha.com/api/sa/combined/", Suffix: ".xml"},
	}
}
