// Package corpus holds the normalized moment records the indices are built
// from, and loads them from CSV or SQLite sources.
package corpus

import (
	"math"
	"strconv"
	"strings"
)

// TextSeparator joins the fields that make up a moment's searchable text.
const TextSeparator = " . "

// Moment is one sport highlight record. Optional attributes are empty
// strings when absent, never nil.
type Moment struct {
	ID         string `json:"id"`
	Sport      string `json:"sport,omitempty"`
	Tournament string `json:"tournament,omitempty"`
	Year       string `json:"year,omitempty"`
	Event      string `json:"event,omitempty"`
	Round      string `json:"round,omitempty"`
	Set        string `json:"set,omitempty"`
	Game       string `json:"game,omitempty"`
	Point      string `json:"point,omitempty"`
	Player1    string `json:"player1,omitempty"`
	Player2    string `json:"player2,omitempty"`
	Surface    string `json:"surface,omitempty"`
	SourceURL  string `json:"source_url,omitempty"`
	Commentary string `json:"commentary,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Tags       string `json:"tags,omitempty"`
	Text       string `json:"text"`
}

// Columns is the canonical column order of a normalized corpus file.
var Columns = []string{
	"id", "sport", "tournament", "year", "event", "round", "set", "game", "point",
	"player1", "player2", "surface", "source_url", "commentary", "summary", "tags", "text",
}

// BuildText derives the searchable text of m from its attributes.
// The result depends only on those attributes, never on m.Text.
func BuildText(m Moment) string {
	parts := []string{
		m.Commentary,
		m.Summary,
		m.Tournament,
		m.Event,
		m.Round,
		m.Player1,
		m.Player2,
		m.Tags,
		m.Surface,
		m.Year,
	}
	return strings.Join(parts, TextSeparator)
}

// Derive returns a copy of m with Text regenerated from its attributes.
func (m Moment) Derive() Moment {
	m.Text = BuildText(m)
	return m
}

// YearValue parses Year as an integer. Dataframe exports render integer
// columns with missing values as floats ("2012.0"), so whole floats are
// accepted too.
func (m Moment) YearValue() (int, bool) {
	s := strings.TrimSpace(m.Year)
	if s == "" {
		return 0, false
	}
	if y, err := strconv.Atoi(s); err == nil {
		return y, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// Field returns the value of the named column, or "" for unknown names.
func (m Moment) Field(name string) string {
	switch name {
	case "id":
		return m.ID
	case "sport":
		return m.Sport
	case "tournament":
		return m.Tournament
	case "year":
		return m.Year
	case "event":
		return m.Event
	case "round":
		return m.Round
	case "set":
		return m.Set
	case "game":
		return m.Game
	case "point":
		return m.Point
	case "player1":
		return m.Player1
	case "player2":
		return m.Player2
	case "surface":
		return m.Surface
	case "source_url":
		return m.SourceURL
	case "commentary":
		return m.Commentary
	case "summary":
		return m.Summary
	case "tags":
		return m.Tags
	case "text":
		return m.Text
	}
	return ""
}

// SetField assigns the named column. Unknown names are ignored.
func (m *Moment) SetField(name, value string) {
	switch name {
	case "id":
		m.ID = value
	case "sport":
		m.Sport = value
	case "tournament":
		m.Tournament = value
	case "year":
		m.Year = value
	case "event":
		m.Event = value
	case "round":
		m.Round = value
	case "set":
		m.Set = value
	case "game":
		m.Game = value
	case "point":
		m.Point = value
	case "player1":
		m.Player1 = value
	case "player2":
		m.Player2 = value
	case "surface":
		m.Surface = value
	case "source_url":
		m.SourceURL = value
	case "commentary":
		m.Commentary = value
	case "summary":
		m.Summary = value
	case "tags":
		m.Tags = value
	case "text":
		m.Text = value
	}
}
