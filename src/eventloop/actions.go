package eventloop

import (
	"go.uber.org/zap"

	"clip-translator/src/translate"
)

type ActionKind int

const (
	ActionSelectBackend ActionKind = iota
	ActionSelectSource
	ActionSelectDest
	ActionClipboardListener
	ActionDragCopy
	ActionKeepParagraph
	ActionKeepOnTop
	ActionIncrementalCopy
	ActionQuit
)

// Action is a user command from the tray menu. Backend and Language are read
// by the select actions, On by the toggles.
type Action struct {
	Kind     ActionKind
	Backend  translate.Kind
	Language translate.Language
	On       bool
}

func SelectBackend(k translate.Kind) Action { return Action{Kind: ActionSelectBackend, Backend: k} }

func SelectSource(l translate.Language) Action { return Action{Kind: ActionSelectSource, Language: l} }

func SelectDest(l translate.Language) Action { return Action{Kind: ActionSelectDest, Language: l} }

func Toggle(kind ActionKind, on bool) Action { return Action{Kind: kind, On: on} }

func Quit() Action { return Action{Kind: ActionQuit} }

func (l *Loop) handleAction(a Action) {
	var err error
	switch a.Kind {
	case ActionSelectBackend:
		err = l.ctrl.SetCurrentTranslator(a.Backend)
	case ActionSelectSource:
		err = l.ctrl.SetSourceLanguage(a.Language)
	case ActionSelectDest:
		err = l.ctrl.SetDestLanguage(a.Language)
	case ActionClipboardListener:
		l.ctrl.SetClipboardListener(a.On)
	case ActionDragCopy:
		l.ctrl.SetDragCopy(a.On)
	case ActionKeepParagraph:
		l.ctrl.SetKeepParagraph(a.On)
	case ActionKeepOnTop:
		l.ctrl.SetKeepOnTop(a.On)
	case ActionIncrementalCopy:
		l.ctrl.SetIncrementalCopy(a.On)
	default:
		l.logger.Warn("unknown action", zap.Int("kind", int(a.Kind)))
		return
	}
	if err != nil {
		l.logger.Error("action rejected", zap.Int("kind", int(a.Kind)), zap.Error(err))
	}
}
