package tui

// Key bindings handled by Model.handleKey.
const (
	KeyQuit        = "q"
	KeyCtrlC       = "ctrl+c"
	KeyTab         = "tab"
	KeyLiveTab     = "1"
	KeyAnalysisTab = "2"
	KeyStart       = "s"
	KeyStop        = "x"
	KeyRefresh     = "r"
)
