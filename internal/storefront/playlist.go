package storefront

// Track is a playlist item: a catalog entry plus the product image it was
// discovered with.
type Track struct {
	CatalogEntry
	Image string `json:"image,omitempty"`
}

// Playlist is an ordered, duplicate-free sequence of tracks.
type Playlist struct {
	tracks []Track
	index  map[string]int
}

// NewPlaylist keeps the first occurrence of every handle.
func NewPlaylist(tracks []Track) *Playlist {
	p := &Playlist{index: make(map[string]int, len(tracks))}
	for _, t := range tracks {
		if t.Handle == "" {
			continue
		}
		if _, dup := p.index[t.Handle]; dup {
			continue
		}
		p.index[t.Handle] = len(p.tracks)
		p.tracks = append(p.tracks, t)
	}
	return p
}

func (p *Playlist) Len() int {
	if p == nil {
		return 0
	}
	return len(p.tracks)
}

func (p *Playlist) Handles() []string {
	if p == nil {
		return nil
	}
	handles := make([]string, len(p.tracks))
	for i, t := range p.tracks {
		handles[i] = t.Handle
	}
	return handles
}

func (p *Playlist) Track(handle string) (Track, bool) {
	if p == nil {
		return Track{}, false
	}
	i, ok := p.index[handle]
	if !ok {
		return Track{}, false
	}
	return p.tracks[i], true
}

// Next returns the track after handle. At the end it wraps to the first
// track only when loop is set. A handle that is not in the playlist starts
// from the first track.
func (p *Playlist) Next(handle string, loop bool) (Track, bool) {
	return p.step(handle, 1, loop)
}

// Previous is the mirror of Next.
func (p *Playlist) Previous(handle string, loop bool) (Track, bool) {
	return p.step(handle, -1, loop)
}

func (p *Playlist) step(handle string, dir int, loop bool) (Track, bool) {
	n := p.Len()
	if n == 0 {
		return Track{}, false
	}
	i, ok := p.index[handle]
	if !ok {
		if dir > 0 {
			return p.tracks[0], true
		}
		return p.tracks[n-1], true
	}

	j := i + dir
	if j < 0 || j >= n {
		if !loop {
			return Track{}, false
		}
		j = (j + n) % n
	}
	return p.tracks[j], true
}
