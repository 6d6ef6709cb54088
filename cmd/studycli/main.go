// Command studycli is a terminal study client. It talks to a running
// srsserver over its JSON API, using a JWT from the PRISMA_JWT environment
// variable.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type question struct {
	ID       int64    `json:"id"`
	Prompt   string   `json:"prompt"`
	Options  []string `json:"options"`
	Category string   `json:"category"`
	Topic    string   `json:"topic"`
}

type nextResponse struct {
	Found     bool     `json:"found"`
	IsAdvance bool     `json:"is_advance"`
	Item      question `json:"item"`
}

type gradeResponse struct {
	IntervalDays int32  `json:"interval_days"`
	DueDate      string `json:"due_date"`
}

type apiClient struct {
	baseURI string
	jwt     string
	client  *http.Client
}

func (c *apiClient) do(method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		bts, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(bts)
	}
	req, err := http.NewRequest(method, c.baseURI+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.jwt)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		bts, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(bts))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type gameStateManager struct {
	visibleQuestion question
	haveQuestion    bool
	isAdvance       bool
	revealed        bool
	lastAnswer      string
	lastCorrect     bool
	lastSchedule    string
	startedAt       time.Time
}

func (m *gameStateManager) View() string {
	var body, footer string
	if !m.haveQuestion {
		body = "No question loaded. Type \"next\" to fetch the next scheduled question,\n" +
			"optionally followed by a topic, e.g. \"next anatomy\"."
	} else {
		body = strings.Repeat("-", 20)
		body += "\n\n"
		body += "  " + m.visibleQuestion.Prompt
		if m.isAdvance {
			body += "  (studying ahead)"
		}
		body += "\n\n"
		for i, opt := range m.visibleQuestion.Options {
			body += fmt.Sprintf("  %d) %s\n", i+1, opt)
		}
		if m.revealed {
			verdict := "Incorrect."
			if m.lastCorrect {
				verdict = "Correct!"
			}
			body += "\n" + verdict + " Answer: " + m.lastAnswer + "\n"
			if m.lastSchedule != "" {
				body += m.lastSchedule + "\n"
			}
			footer = "(1) Failed    (2) Hard    (3) Easy"
		} else {
			footer = "Type the number of your answer and hit enter."
		}
	}
	return body + "\n\n" + strings.Repeat("-", 25) + "\n" + footer + "\n"
}

type model struct {
	textInput textinput.Model
	mgr       *gameStateManager
	api       *apiClient
}

type questionMsg nextResponse
type gradedMsg gradeResponse
type errMsg string

func initialModel(api *apiClient) model {
	ti := textinput.New()
	ti.Placeholder = "next"
	ti.Focus()
	ti.CharLimit = 40
	ti.Width = 40

	return model{
		textInput: ti,
		mgr:       new(gameStateManager),
		api:       api,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func nextCmd(api *apiClient, topic string) tea.Cmd {
	return func() tea.Msg {
		path := "/api/items/next"
		if topic != "" {
			path += "?topic=" + topic
		}
		var res nextResponse
		if err := api.do("GET", path, nil, &res); err != nil {
			return errMsg(err.Error())
		}
		return questionMsg(res)
	}
}

func gradeCmd(api *apiClient, itemID int64, rating string, correct bool, elapsed time.Duration) tea.Cmd {
	return func() tea.Msg {
		var res gradeResponse
		body := map[string]any{
			"rating":       rating,
			"correct":      correct,
			"time_seconds": elapsed.Seconds(),
		}
		path := fmt.Sprintf("/api/items/%d/grade", itemID)
		if err := api.do("POST", path, body, &res); err != nil {
			return errMsg(err.Error())
		}
		return gradedMsg(res)
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.Type {

		case tea.KeyCtrlC:
			return m, tea.Quit

		case tea.KeyEnter:
			input := strings.TrimSpace(m.textInput.Value())
			m.textInput.Reset()
			return m.handleInput(input)
		}

	case questionMsg:
		m.mgr.visibleQuestion = msg.Item
		m.mgr.haveQuestion = msg.Found
		m.mgr.isAdvance = msg.IsAdvance
		m.mgr.revealed = false
		m.mgr.startedAt = time.Now()
		if !msg.Found {
			return m, func() tea.Msg { return errMsg("nothing to study right now") }
		}

	case gradedMsg:
		m.mgr.lastSchedule = fmt.Sprintf("Next review in %d day(s), on %s.",
			msg.IntervalDays, msg.DueDate)

	case errMsg:
		log.Print("Possible error: " + string(msg))

	}
	m.textInput, cmd = m.textInput.Update(msg)

	return m, cmd
}

func (m model) handleInput(input string) (tea.Model, tea.Cmd) {
	switch {
	case input == "quit" || input == "exit":
		return m, tea.Quit

	case strings.HasPrefix(input, "next"):
		topic := strings.TrimSpace(strings.TrimPrefix(input, "next"))
		return m, nextCmd(m.api, topic)

	case m.mgr.haveQuestion && !m.mgr.revealed:
		choice, err := strconv.Atoi(input)
		if err != nil || choice < 1 || choice > len(m.mgr.visibleQuestion.Options) {
			return m, func() tea.Msg { return errMsg("pick an option number") }
		}
		answer := m.mgr.visibleQuestion.Options[choice-1]
		m.mgr.revealed = true
		m.mgr.lastAnswer = answer
		// The server never sends the correct option with the question, so
		// correctness comes back with the reveal.
		return m, revealCmd(m.api, m.mgr, answer)

	case m.mgr.haveQuestion && m.mgr.revealed:
		rating, ok := map[string]string{"1": "fail", "2": "hard", "3": "easy"}[input]
		if !ok {
			return m, func() tea.Msg { return errMsg("grade with 1, 2 or 3") }
		}
		elapsed := time.Since(m.mgr.startedAt)
		itemID := m.mgr.visibleQuestion.ID
		correct := m.mgr.lastCorrect
		m.mgr.haveQuestion = false
		return m, tea.Sequence(
			gradeCmd(m.api, itemID, rating, correct, elapsed),
			nextCmd(m.api, ""))
	}
	return m, nil
}

func revealCmd(api *apiClient, mgr *gameStateManager, answer string) tea.Cmd {
	return func() tea.Msg {
		var res struct {
			Correct       bool   `json:"correct"`
			CorrectOption string `json:"correct_option"`
			Explanation   string `json:"explanation"`
		}
		body := map[string]any{"item_id": mgr.visibleQuestion.ID, "answer": answer}
		if err := api.do("POST", "/api/items/check", body, &res); err != nil {
			return errMsg(err.Error())
		}
		mgr.lastCorrect = res.Correct
		mgr.lastAnswer = res.CorrectOption
		if res.Explanation != "" {
			mgr.lastAnswer += " (" + res.Explanation + ")"
		}
		return nil
	}
}

func (m model) View() string {
	return fmt.Sprintf("%s\n\n%s\n\n", m.mgr.View(), m.textInput.View())
}

func main() {
	baseURI := os.Getenv("PRISMA_URI")
	if baseURI == "" {
		baseURI = "http://localhost:8280"
	}
	token := os.Getenv("PRISMA_JWT")
	if token == "" {
		fmt.Println("Set PRISMA_JWT to a token for your user.")
		os.Exit(1)
	}
	api := &apiClient{baseURI: baseURI, jwt: token, client: &http.Client{Timeout: 10 * time.Second}}
	p := tea.NewProgram(initialModel(api))

	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
