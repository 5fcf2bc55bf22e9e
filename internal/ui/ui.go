package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/bz888/chatrelay/internal/api"
	serverClient "github.com/bz888/chatrelay/internal/api/server/client"
	"github.com/bz888/chatrelay/internal/logger"
)

const (
	cmdHelp   = "/help"
	cmdBye    = "/bye"
	cmdClear  = "/clear"
	cmdDebug  = "/debug"
	cmdModels = "/models"

	modelModalPage = "modelModal"
)

type View struct {
	app          *tview.Application
	pages        *tview.Pages
	mainFlex     *tview.Flex
	textView     *tview.TextView
	textArea     *tview.TextArea
	debugConsole *tview.TextView

	client *api.Client
	conv   *api.Conversation
	log    *logger.Logger

	mu           sync.Mutex
	currentModel string
	debugShown   bool

	ctx    context.Context
	cancel context.CancelFunc
}

func New(model string, dev bool) *View {
	v := &View{
		app:          tview.NewApplication(),
		conv:         &api.Conversation{},
		currentModel: model,
		debugShown:   dev,
	}
	v.ctx, v.cancel = context.WithCancel(context.Background())
	v.app.EnablePaste(true)
	v.app.EnableMouse(true)

	v.debugConsole = v.initDebugConsole()
	v.textView = initChatViewer()
	v.textArea = initChatInput()
	return v
}

func initChatViewer() *tview.TextView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true)

	textView.SetTitle("Conversation").SetBorder(true)
	textView.SetScrollable(true)
	textView.ScrollToEnd()
	return textView
}

func initChatInput() *tview.TextArea {
	textArea := tview.NewTextArea()
	textArea.SetTitle("Question").SetBorder(true)
	return textArea
}

func (v *View) initDebugConsole() *tview.TextView {
	console := tview.NewTextView().
		SetChangedFunc(func() {
			v.app.Draw()
		}).
		SetDynamicColors(false).
		SetWordWrap(true)

	console.SetTitle("Debugger").SetBorder(true)
	console.ScrollToEnd()
	return console
}

// DebugConsole is the log sink shown beside the conversation in dev mode.
func (v *View) DebugConsole() io.Writer {
	return v.debugConsole
}

// Run blocks until the user quits.
func (v *View) Run(client *api.Client) error {
	v.attach(client)
	defer v.cancel()

	fmt.Fprintf(v.textView, "Using model: %s. Type %s for commands.\n", v.model(), cmdHelp)

	return v.app.SetRoot(v.pages, true).SetFocus(v.textArea).Run()
}

func (v *View) attach(client *api.Client) {
	v.client = client
	v.log = logger.NewLogger("views")

	v.textView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEnter {
			v.app.SetFocus(v.textArea)
		}
		return event
	})

	subFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(v.textView, 0, 1, false).
		AddItem(v.textArea, 8, 2, true)
	v.mainFlex = tview.NewFlex().
		AddItem(subFlex, 0, 2, false)

	if v.debugShown {
		v.mainFlex.AddItem(v.debugConsole, 0, 1, false)
	}

	v.pages = tview.NewPages().AddPage("main", v.mainFlex, true, true)

	v.setInputCapture()
}

func (v *View) setInputCapture() {
	v.textArea.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyESC:
			if v.textView.GetText(false) != "" {
				v.app.SetFocus(v.textView)
			}
		case tcell.KeyEnter:
			content := v.textArea.GetText()
			if strings.TrimSpace(content) == "" {
				return nil
			}
			v.textArea.SetText("", true)
			v.handleInput(content)
			return nil
		}
		return event
	})
}

// handleInput runs a command or starts a chat turn.
func (v *View) handleInput(content string) {
	switch strings.TrimSpace(content) {
	case cmdHelp:
		v.listHelp(content)
	case cmdBye:
		v.quitApp()
	case cmdClear:
		v.clearChat()
	case cmdDebug:
		v.toggleDebugConsole()
	case cmdModels:
		v.textArea.SetDisabled(true)
		go v.createModelModal()
	default:
		v.sendMessage(content)
	}
}

func (v *View) model() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.currentModel
}

func (v *View) setModel(model string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.currentModel = model
}

func (v *View) sendMessage(content string) {
	fmt.Fprintln(v.textView, "\n[red::]You:[-]")
	fmt.Fprintf(v.textView, "%s\n\n", tview.Escape(content))
	fmt.Fprintf(v.textView, "[green::]Bot:[-]\n")
	v.textArea.SetDisabled(true)

	go func() {
		_, err := v.runTurn(v.ctx, content, func(chunk string) {
			v.app.QueueUpdateDraw(func() {
				fmt.Fprint(v.textView, tview.Escape(chunk))
			})
		})
		v.app.QueueUpdateDraw(func() {
			if err != nil {
				fmt.Fprintf(v.textView, "\n[red::]%s[-]\n", tview.Escape(describeError(err)))
			}
			v.textArea.SetDisabled(false)
		})
	}()
}

// runTurn sends content with the history. A failed turn leaves the history
// as it was before the call.
func (v *View) runTurn(ctx context.Context, content string, onChunk func(string)) (string, error) {
	before := v.conv.Len()
	v.conv.Append(serverClient.RoleUser, content)

	reply, err := v.client.Chat(ctx, v.model(), v.conv, onChunk)
	if err != nil {
		v.conv.Truncate(before)
		v.log.Error("Chat turn failed", slog.Any("error", err))
		return reply, err
	}

	v.conv.Append(serverClient.RoleAssistant, reply)
	v.log.Info("Chat turn completed", slog.Int("history", v.conv.Len()))
	return reply, nil
}

func describeError(err error) string {
	switch {
	case errors.Is(err, api.ErrBackendDown):
		return api.ErrBackendDown.Error()
	case errors.Is(err, api.ErrTimeout):
		return "The request timed out, try again or pick a smaller model."
	case errors.Is(err, api.ErrUpstreamDown):
		return "The inference backend is not reachable from the relay."
	default:
		return "Error: " + err.Error()
	}
}

func createModal(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}

func (v *View) createModelModal() {
	models, err := v.client.ListModels(v.ctx)
	if err != nil {
		v.log.Warn("Falling back to default model list", slog.Any("error", err))
	}

	v.app.QueueUpdateDraw(func() {
		closeModal := func() {
			v.pages.RemovePage(modelModalPage)
			v.textArea.SetDisabled(false)
			v.app.SetFocus(v.textArea)
		}

		list := tview.NewList()
		list.SetBorder(true).SetTitle("Models")
		current := v.model()
		for i, model := range models {
			shortcut := rune(0)
			if i < 9 {
				shortcut = '1' + rune(i)
			}
			if model == current {
				list.AddItem(model, "Current LLM", shortcut, func() {
					fmt.Fprintf(v.textView, "\nAlready using model: %s\n\n", model)
					closeModal()
				})
				continue
			}
			list.AddItem(model, "LLM", shortcut, func() {
				v.setModel(model)
				v.log.Info("Model selected", slog.String("model", model))
				fmt.Fprintf(v.textView, "\nUsing model: %s\n\n", model)
				closeModal()
			})
		}
		list.AddItem("Back", "", 'q', closeModal)

		v.pages.AddPage(modelModalPage, createModal(list, 40, 10), true, true)
		v.app.SetFocus(list)
	})
}

func (v *View) toggleDebugConsole() {
	if v.debugShown {
		v.mainFlex.RemoveItem(v.debugConsole)
		fmt.Fprintf(v.textView, "\nDebug console disabled\n")
	} else {
		v.mainFlex.AddItem(v.debugConsole, 0, 1, false)
		fmt.Fprintf(v.textView, "\nDebug console enabled\n")
	}
	v.debugShown = !v.debugShown
}

func (v *View) clearChat() {
	v.conv.Clear()
	v.textView.Clear()
	fmt.Fprintf(v.textView, "Chat cleared. Using model: %s\n", v.model())
}

func (v *View) quitApp() {
	fmt.Fprintf(v.textView, "Bye bye\n")
	v.cancel()
	v.app.Stop()
}

func (v *View) listHelp(content string) {
	fmt.Fprintln(v.textView, "\n[red::]You:[-]")
	fmt.Fprintf(v.textView, "%s\n\n", content)

	fmt.Fprintf(v.textView, "[green::]Bot:[-]\n")
	fmt.Fprintf(v.textView, "Here are some commands you can use:\n")
	fmt.Fprintf(v.textView, "- %s: Display this help message\n", cmdHelp)
	fmt.Fprintf(v.textView, "- %s: Exit the application\n", cmdBye)
	fmt.Fprintf(v.textView, "- %s: Forget the conversation so far\n", cmdClear)
	fmt.Fprintf(v.textView, "- %s: Toggle the debug console\n", cmdDebug)
	fmt.Fprintf(v.textView, "- %s: Select between local LLMs\n\n", cmdModels)
}
