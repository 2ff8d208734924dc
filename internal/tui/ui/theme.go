package ui

import "github.com/gdamore/tcell/v2"

// Theme holds color constants for the TUI.
type Theme struct {
	BgColor           tcell.Color
	FgColor           tcell.Color
	BorderColor       tcell.Color
	BorderFocusColor  tcell.Color
	TableHeaderFg     tcell.Color
	TableHeaderBg     tcell.Color
	TableCursorFg     tcell.Color
	TableCursorBg     tcell.Color
	CrumbActiveFg     tcell.Color
	CrumbActiveBg     tcell.Color
	CrumbInactiveFg   tcell.Color
	CrumbInactiveBg   tcell.Color
	MenuKeyColor      tcell.Color
	NumericKeyColor   tcell.Color
	TitleColor        tcell.Color
	CounterColor      tcell.Color
	FlashInfoColor    tcell.Color
	FlashWarnColor    tcell.Color
	FlashErrColor     tcell.Color
	PromptBorderColor tcell.Color
	FieldBgColor      tcell.Color

	MineColor    tcell.Color
	PeerColor    tcell.Color
	SystemColor  tcell.Color
	PendingColor tcell.Color
	OnlineColor  tcell.Color
	OfflineColor tcell.Color
}

// DefaultTheme returns the dark violet NYX theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:           tcell.ColorBlack,
		FgColor:           tcell.ColorLavender,
		BorderColor:       tcell.ColorMediumPurple,
		BorderFocusColor:  tcell.ColorViolet,
		TableHeaderFg:     tcell.ColorWhite,
		TableHeaderBg:     tcell.ColorBlack,
		TableCursorFg:     tcell.ColorBlack,
		TableCursorBg:     tcell.ColorMediumOrchid,
		CrumbActiveFg:     tcell.ColorBlack,
		CrumbActiveBg:     tcell.ColorViolet,
		CrumbInactiveFg:   tcell.ColorBlack,
		CrumbInactiveBg:   tcell.ColorMediumPurple,
		MenuKeyColor:      tcell.ColorMediumOrchid,
		NumericKeyColor:   tcell.ColorFuchsia,
		TitleColor:        tcell.ColorViolet,
		CounterColor:      tcell.ColorThistle,
		FlashInfoColor:    tcell.ColorPlum,
		FlashWarnColor:    tcell.ColorOrange,
		FlashErrColor:     tcell.ColorOrangeRed,
		PromptBorderColor: tcell.ColorMediumPurple,
		FieldBgColor:      tcell.ColorIndigo,

		MineColor:    tcell.ColorViolet,
		PeerColor:    tcell.ColorLightSkyBlue,
		SystemColor:  tcell.ColorGray,
		PendingColor: tcell.ColorDimGray,
		OnlineColor:  tcell.ColorLimeGreen,
		OfflineColor: tcell.ColorGray,
	}
}
