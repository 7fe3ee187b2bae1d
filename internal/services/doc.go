// Package services implements the remote playlist source collaborators a sync run reads from.
//
// # Lister Interface
//
// Every origin with a remote listing provides a [Lister]. [Listers] selects one by
// [models.Origin]; manual playlists have no lister.
//
// # Spotify Implementation
//
// [SpotifyService] authenticates with the OAuth2 client-credentials flow; the transport from
// [clientcredentials.Config] fetches and refreshes the app token. Playlist tracks are paged until
// the API reports no next page, so a listing is either complete or an error.
//
// # YouTube Music Implementation
//
// [YouTubeService] communicates with the FastAPI proxy server wrapping ytmusicapi. The auth_file
// path is sent via the X-Auth-File header on each request. It also implements song search for the
// resolver.
//
// [YTDLPService] lists YouTube playlists without the proxy.
//
// # Error Handling
//
// HTTP failures surface as [APIError], which unwraps to a shared sentinel:
//   - [shared.ErrAuthFailed] : 401 or 403
//   - [shared.ErrPlaylistNotFound] : 404
//   - [shared.ErrRateLimited] : 429
//   - [shared.ErrServiceUnavailable] : 5xx
//   - [shared.ErrAPIRequest] : any other status
package services
