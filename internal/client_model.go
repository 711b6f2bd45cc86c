package internal

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

// TUIModel drives the terminal chat client: it performs the join handshake
// and renders roster notices, replayed history, and live broadcasts.
type TUIModel struct {
	textInput     textinput.Model
	messages      []displayMessage
	serverJoinURL string
	roomKey       string
	username      string

	websocketConn *websocket.Conn
	writeMutex    sync.Mutex
	isConnected   bool
	isReady       bool
	lastError     string
}

type displayKind int

const (
	displaySystem displayKind = iota
	displayChat
	displayError
)

type displayMessage struct {
	kind displayKind
	user string
	body string
	ts   time.Time
}

type (
	connectedMsg    struct{ conn *websocket.Conn }
	incomingMsg     struct{ message Message }
	disconnectedMsg struct{ err error }
)

func NewTUIModel(serverJoinURL, roomKey, username string) *TUIModel {
	input := textinput.New()
	input.Placeholder = "Type a message…"
	input.CharLimit = 0
	input.Focus()
	input.Prompt = "> "

	if username == "" {
		username = defaultUsername()
	}

	return &TUIModel{
		textInput:     input,
		messages:      make([]displayMessage, 0, 64),
		serverJoinURL: serverJoinURL,
		roomKey:       roomKey,
		username:      username,
	}
}

func defaultUsername() string {
	if user := os.Getenv("ROOMCHAT_USER"); user != "" {
		return user
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "anon"
}

func (model *TUIModel) Init() tea.Cmd {
	return model.connectCmd()
}

// connectCmd dials the room and sends the join request. The server answers
// with the replay queue, then Ready.
func (model *TUIModel) connectCmd() tea.Cmd {
	joinURL := model.serverJoinURL
	roomKey := model.roomKey
	name := model.username
	return func() tea.Msg {
		target, err := url.Parse(joinURL)
		if err != nil {
			return disconnectedMsg{err: err}
		}
		query := target.Query()
		query.Set("room", roomKey)
		target.RawQuery = query.Encode()

		conn, _, err := websocket.DefaultDialer.Dial(target.String(), nil)
		if err != nil {
			return disconnectedMsg{err: err}
		}
		payload, err := EncodeMessage(JoinRequest{Name: name})
		if err != nil {
			_ = conn.Close()
			return disconnectedMsg{err: err}
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			_ = conn.Close()
			return disconnectedMsg{err: err}
		}
		return connectedMsg{conn: conn}
	}
}

// readCmd waits for the next server frame. Update re-issues it after every
// incoming message so reads keep flowing.
func (model *TUIModel) readCmd() tea.Cmd {
	conn := model.websocketConn
	return func() tea.Msg {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return disconnectedMsg{err: err}
		}
		message, err := ParseMessage(payload)
		if err != nil {
			// unknown server frame; skip it but keep reading
			return incomingMsg{message: nil}
		}
		return incomingMsg{message: message}
	}
}

func (model *TUIModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch typedMessage := message.(type) {
	case tea.KeyMsg:
		if typedMessage.Type == tea.KeyCtrlC || typedMessage.Type == tea.KeyEsc {
			model.closeConn()
			return model, tea.Quit
		}
		if typedMessage.Type == tea.KeyEnter {
			model.submitInput()
			return model, nil
		}
	case connectedMsg:
		model.websocketConn = typedMessage.conn
		model.isConnected = true
		model.appendSystem(fmt.Sprintf("Joined room %s as %s.", model.roomKey, model.username))
		return model, model.readCmd()
	case incomingMsg:
		model.applyIncoming(typedMessage.message)
		return model, model.readCmd()
	case disconnectedMsg:
		model.isConnected = false
		model.isReady = false
		if typedMessage.err != nil {
			model.lastError = typedMessage.err.Error()
		}
		return model, nil
	}
	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(message)
	return model, cmd
}

func (model *TUIModel) applyIncoming(message Message) {
	switch typed := message.(type) {
	case Ready:
		model.isReady = typed.Ready
	case MemberJoined:
		model.appendSystem(fmt.Sprintf("%s joined.", typed.Joined))
	case MemberQuitted:
		model.appendSystem(fmt.Sprintf("%s left.", typed.Quit))
	case Broadcast:
		model.messages = append(model.messages, displayMessage{
			kind: displayChat,
			user: typed.Name,
			body: typed.Message,
			ts:   time.Unix(int64(typed.Timestamp), 0),
		})
	case ErrorResponse:
		model.messages = append(model.messages, displayMessage{
			kind: displayError,
			body: typed.Error,
			ts:   time.Now(),
		})
	}
}

func (model *TUIModel) submitInput() {
	body := strings.TrimSpace(model.textInput.Value())
	if body == "" || !model.isConnected {
		return
	}
	model.textInput.SetValue("")
	payload, err := EncodeMessage(Text{Message: body})
	if err != nil {
		return
	}
	model.writeMutex.Lock()
	defer model.writeMutex.Unlock()
	// own messages come back through the broadcast stream, so no local echo
	_ = model.websocketConn.WriteMessage(websocket.TextMessage, payload)
}

func (model *TUIModel) appendSystem(body string) {
	model.messages = append(model.messages, displayMessage{kind: displaySystem, body: body, ts: time.Now()})
}

func (model *TUIModel) closeConn() {
	if model.websocketConn == nil {
		return
	}
	model.writeMutex.Lock()
	defer model.writeMutex.Unlock()
	_ = model.websocketConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = model.websocketConn.Close()
}

// RunClient launches the terminal client against the given join URL.
func RunClient(serverJoinURL, roomKey, username string) error {
	model := NewTUIModel(serverJoinURL, roomKey, username)
	program := tea.NewProgram(model)
	_, err := program.Run()
	return err
}
