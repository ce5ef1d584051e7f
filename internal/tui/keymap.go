package tui

// Key binding constants used in handleKey.
const (
	KeyQuit      = "q"
	KeyQuitUpper = "Q"
	KeyCtrlC     = "ctrl+c"
	KeyRecord    = " "
	KeyUndo      = "u"
	KeyRedo      = "r"
	KeyStop      = "s"
	KeyNext      = "n"
	KeyGallery   = "g"
)
