package models

// RemoteTrack is one entry of a remote playlist listing. It lives only as long as the sync run that read it.
type RemoteTrack struct {
	SourceID    string // e.g. "spotify:track:<id>"
	Title       string
	Artist      string
	Album       string
	Duration    int // service estimate in seconds
	TrackNumber int
	Year        int
	Genre       string
	URL         string // originating URL, directly fetchable for YouTube Music
}

// RemoteListing is the complete result of reading a remote playlist.
type RemoteListing struct {
	Name        string
	Description string
	CoverURL    string
	Tracks      []RemoteTrack
}

// Candidate is a ranked, possibly downloadable match for a [RemoteTrack].
type Candidate struct {
	Handle   string // fetch URL or provider handle
	Title    string
	Artist   string
	Album    string
	Duration int     // estimated seconds
	Score    float64 // confidence in [0,1]
	Format   string  // container hint, empty when unknown
}

// StoredFile describes an audio file that was fully written and verified inside a playlist folder.
type StoredFile struct {
	Filename string
	Path     string
	Size     int64
	Hash     string
	Duration int // decoded duration in seconds
}
