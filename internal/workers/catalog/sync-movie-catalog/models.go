// internal/workers/catalog/sync-movie-catalog/models.go
package syncmoviecatalog

type Input struct {
	ForceRefresh bool `json:"forceRefresh"`
}

type Output struct {
	MoviesIndexed int  `json:"moviesIndexed"`
	FromCache     bool `json:"fromCache"`
}
