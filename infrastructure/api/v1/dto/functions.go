// Package dto holds the request bodies of the v1 function endpoints.
package dto

// TitleRecord is a record as sent by callers and database webhooks.
type TitleRecord struct {
	ID    *int64 `json:"id"`
	Title string `json:"title"`
}

// GenerateTitleEmbeddingRequest is the body of generate_title_embedding.
// Webhook payloads carry extra keys (type, table, old_record) which are ignored.
type GenerateTitleEmbeddingRequest struct {
	Initialize bool         `json:"initialize"`
	Record     *TitleRecord `json:"record"`
}

// SearchSimilarTitlesRequest is the body of search_similar_titles.
type SearchSimilarTitlesRequest struct {
	Query any  `json:"query"`
	TopN  *int `json:"top_n"`
}

// SearchSongsRequest is the body of search_songs.
type SearchSongsRequest struct {
	Query      any  `json:"query"`
	MaxResults *int `json:"max_results"`
}

// QueryText returns query when it is a string, else "".
func QueryText(query any) string {
	s, _ := query.(string)
	return s
}

// IntOrZero dereferences n, treating nil as zero.
func IntOrZero(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
