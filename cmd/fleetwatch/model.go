package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
	"github.com/muesli/reflow/wordwrap"

	"fleetsim/internal/fence"
	"fleetsim/internal/telemetry"
)

type connectedMsg struct{ connectionID string }
type snapshotMsg struct{ snaps []agentSnapshot }
type positionsMsg struct{ updates []telemetry.AgentUpdate }
type zonesMsg struct{ zones []fence.Zone }
type statsMsg struct{ stats telemetry.FleetStats }
type zoneActivityMsg struct{ activity []fence.ZoneActivity }
type disconnectedMsg struct{ err error }

// agentSnapshot mirrors the hub's snapshot payload entry.
type agentSnapshot struct {
	Agent      telemetry.Agent `json:"agent"`
	Lat        float64         `json:"lat"`
	Lon        float64         `json:"lon"`
	Alt        float64         `json:"alt"`
	SpeedMPS   float64         `json:"speed_mps"`
	HeadingDeg float64         `json:"heading_deg"`
}

// decodeEvent maps a hub envelope onto a TUI message.
func decodeEvent(env envelope) (tea.Msg, bool) {
	switch env.Type {
	case "connected":
		var p struct {
			ConnectionID string `json:"connection_id"`
		}
		if json.Unmarshal(env.Data, &p) != nil {
			return nil, false
		}
		return connectedMsg{connectionID: p.ConnectionID}, true
	case "snapshot":
		var snaps []agentSnapshot
		if json.Unmarshal(env.Data, &snaps) != nil {
			return nil, false
		}
		return snapshotMsg{snaps: snaps}, true
	case "positions":
		var updates []telemetry.AgentUpdate
		if json.Unmarshal(env.Data, &updates) != nil {
			return nil, false
		}
		return positionsMsg{updates: updates}, true
	case "zones":
		var zones []fence.Zone
		if json.Unmarshal(env.Data, &zones) != nil {
			return nil, false
		}
		return zonesMsg{zones: zones}, true
	case "statistics":
		var stats telemetry.FleetStats
		if json.Unmarshal(env.Data, &stats) != nil {
			return nil, false
		}
		return statsMsg{stats: stats}, true
	case "zone_activity":
		var activity []fence.ZoneActivity
		if json.Unmarshal(env.Data, &activity) != nil {
			return nil, false
		}
		return zoneActivityMsg{activity: activity}, true
	}
	return nil, false
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("57")).Padding(0, 1)
	sectionStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	inactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type agentRow struct {
	name string
	band string
	telemetry.AgentUpdate
}

type model struct {
	conn         *websocket.Conn
	connectionID string
	agents       map[string]*agentRow
	order        []string
	names        map[string]string
	bands        map[string]string
	zones        []fence.Zone
	activity     []fence.ZoneActivity
	stats        telemetry.FleetStats
	table        table.Model
	logVP        viewport.Model
	logs         []string
	width        int
	height       int
	err          error
}

func newModel(conn *websocket.Conn) model {
	cols := []table.Column{
		{Title: "Agent", Width: 12},
		{Title: "Band", Width: 5},
		{Title: "Lat", Width: 10},
		{Title: "Lon", Width: 10},
		{Title: "Alt", Width: 7},
		{Title: "Spd", Width: 6},
		{Title: "Hdg", Width: 6},
		{Title: "Status", Width: 9},
	}
	t := table.New(table.WithColumns(cols), table.WithHeight(12))
	return model{
		conn:   conn,
		agents: make(map[string]*agentRow),
		names:  make(map[string]string),
		bands:  make(map[string]string),
		table:  t,
		logVP:  viewport.New(0, 0),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logVP.Width = msg.Width
		m.logVP.Height = max(4, msg.Height-m.table.Height()-8)
	case connectedMsg:
		m.connectionID = msg.connectionID
		m.appendLog(fmt.Sprintf("connected as %s", msg.connectionID))
	case snapshotMsg:
		for _, s := range msg.snaps {
			m.names[s.Agent.ID] = s.Agent.Name
			m.bands[s.Agent.ID] = s.Agent.Band
			m.upsert(telemetry.AgentUpdate{
				ID: s.Agent.ID, Lat: s.Lat, Lon: s.Lon, Alt: s.Alt,
				SpeedMPS: s.SpeedMPS, HeadingDeg: s.HeadingDeg, Status: s.Agent.Status,
			})
		}
		m.appendLog(fmt.Sprintf("snapshot: %d agents", len(msg.snaps)))
	case positionsMsg:
		for _, u := range msg.updates {
			m.upsert(u)
		}
	case zonesMsg:
		m.zones = msg.zones
	case statsMsg:
		m.stats = msg.stats
	case zoneActivityMsg:
		m.activity = msg.activity
	case disconnectedMsg:
		m.err = msg.err
		m.appendLog(fmt.Sprintf("disconnected: %v", msg.err))
	}
	m.refreshTable()
	return m, nil
}

func (m *model) upsert(u telemetry.AgentUpdate) {
	row, ok := m.agents[u.ID]
	if !ok {
		row = &agentRow{name: m.names[u.ID], band: m.bands[u.ID]}
		m.agents[u.ID] = row
		m.order = append(m.order, u.ID)
	}
	if row.name == "" {
		row.name = m.names[u.ID]
	}
	if row.band == "" {
		row.band = m.bands[u.ID]
	}
	row.AgentUpdate = u
}

func (m *model) refreshTable() {
	rows := make([]table.Row, 0, len(m.order))
	for _, id := range m.order {
		a := m.agents[id]
		name := a.name
		if name == "" {
			name = id[:8]
		}
		rows = append(rows, table.Row{
			name, a.band,
			fmt.Sprintf("%.5f", a.Lat), fmt.Sprintf("%.5f", a.Lon),
			fmt.Sprintf("%.1f", a.Alt), fmt.Sprintf("%.1f", a.SpeedMPS),
			fmt.Sprintf("%.0f", a.HeadingDeg), a.Status,
		})
	}
	m.table.SetRows(rows)
}

func (m *model) appendLog(line string) {
	stamped := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), line)
	m.logs = append(m.logs, stamped)
	if len(m.logs) > 200 {
		m.logs = m.logs[len(m.logs)-200:]
	}
	width := m.logVP.Width
	if width <= 0 {
		width = 80
	}
	var wrapped string
	for _, l := range m.logs {
		wrapped += wordwrap.String(l, width) + "\n"
	}
	m.logVP.SetContent(wrapped)
	m.logVP.GotoBottom()
}

func (m model) View() string {
	header := headerStyle.Render(fmt.Sprintf("fleetwatch — total %d · active %d · inactive %d",
		m.stats.Total, m.stats.Active, m.stats.Inactive))

	activity := sectionStyle.Render("zone activity: ")
	if len(m.activity) == 0 {
		activity += inactiveStyle.Render("none")
	}
	for i, za := range m.activity {
		if i > 0 {
			activity += "  "
		}
		activity += activeStyle.Render(fmt.Sprintf("%s=%d", za.ZoneName, za.Count))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.table.View(),
		activity,
		sectionStyle.Render("events"),
		m.logVP.View(),
	)
}
