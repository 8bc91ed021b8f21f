package model

// NewsItem 是一条财经新闻。
type NewsItem struct {
	Title         string `json:"title"`
	Summary       string `json:"text"`
	URL           string `json:"url"`
	Site          string `json:"site"`
	PublishedDate string `json:"publishedDate"`
}
