package tui

// Key binding constants used in handleKey.
const (
	KeyCtrlC     = "ctrl+c"
	KeyRestart   = "ctrl+r"
	KeyTab       = "tab"
	KeyEnter     = "enter"
	KeyEsc       = "esc"
	KeyBackspace = "backspace"
	KeyUp        = "up"
	KeyDown      = "down"
	KeyLeft      = "left"
	KeyRight     = "right"
	KeyJ         = "j"
	KeyK         = "k"
	KeyQuit      = "q"

	KeyToggleMode = "m"
	KeyPickFile   = "f"
	KeyRecord     = "r"
	KeySubmit     = "s"
	KeyEdit       = "e"
	KeyConfirm    = "c"
	KeyBack       = "b"
	KeyApprove    = "a"
	KeyOpen       = "o"
	KeyNew        = "n"
	KeyReload     = "t"
)
