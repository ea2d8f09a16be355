package room

// Color is a presentation hue assigned to a participant.
type Color string

// Palette is the fixed set of colors a participant can be given.
// Two participants in the same room may share a color.
var Palette = [6]Color{
	"#ff5252",
	"#40c4ff",
	"#69f0ae",
	"#ffd740",
	"#b388ff",
	"#ff8a65",
}

// InPalette reports whether c is one of the palette colors.
func InPalette(c Color) bool {
	for _, p := range Palette {
		if p == c {
			return true
		}
	}
	return false
}

// Participant is the identity the server attaches to a connection.
type Participant struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
	Color    Color  `json:"color"`
	IsOnline bool   `json:"isOnline"`
}

// ChatFile describes a file stored by the upload endpoint.
type ChatFile struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
}
