package state

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrInvalidShape is returned when a payload is not a well-formed aggregate:
// anything that is not a JSON object carrying a timetable array is rejected
// so a corrupt or foreign remote document never reaches the views.
var ErrInvalidShape = errors.New("invalid aggregate shape")

// Slot is a single period inside a timetable entry.
type Slot struct {
	Time    string `json:"time"`
	Subject string `json:"subject"`
	Faculty string `json:"faculty,omitempty"`
	Room    string `json:"room,omitempty"`
}

// TimetableEntry holds the slots for one (day, branch, year, division) group.
// The composite key identifies the entry for merge purposes; ID is the opaque
// identifier assigned by whichever collaborator produced the entry.
type TimetableEntry struct {
	ID       string `json:"id"`
	Day      string `json:"day"`
	Branch   string `json:"branch"`
	Year     string `json:"year"`
	Division string `json:"division"`
	Slots    []Slot `json:"slots"`
}

type AttendanceRecord struct {
	ID       string `json:"id"`
	Student  string `json:"student"`
	Subject  string `json:"subject"`
	Attended int    `json:"attended"`
	Held     int    `json:"held"`
}

type ExamEntry struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Time    string `json:"time,omitempty"`
	Room    string `json:"room,omitempty"`
	Branch  string `json:"branch,omitempty"`
	Year    string `json:"year,omitempty"`
}

type Scholarship struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider,omitempty"`
	Amount   string `json:"amount,omitempty"`
	Deadline string `json:"deadline,omitempty"`
	Link     string `json:"link,omitempty"`
}

type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date,omitempty"`
	Venue       string `json:"venue,omitempty"`
	Description string `json:"description,omitempty"`
}

// Complaint statuses. Transitions are binary-toggle only.
const (
	ComplaintPending  = "PENDING"
	ComplaintResolved = "RESOLVED"
)

type Complaint struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Category  string `json:"category,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type Internship struct {
	ID       string `json:"id"`
	Company  string `json:"company"`
	Role     string `json:"role,omitempty"`
	Stipend  string `json:"stipend,omitempty"`
	Deadline string `json:"deadline,omitempty"`
	Link     string `json:"link,omitempty"`
}

// AppState is the single shared campus document. The whole aggregate is the
// unit of storage and transfer; no collection is individually addressable on
// the remote store.
type AppState struct {
	Timetable    []TimetableEntry   `json:"timetable"`
	Attendance   []AttendanceRecord `json:"attendance"`
	Exams        []ExamEntry        `json:"exams"`
	Scholarships []Scholarship      `json:"scholarships"`
	Events       []Event            `json:"events"`
	Complaints   []Complaint        `json:"complaints"`
	Internships  []Internship       `json:"internships"`

	// Campus map images, stored inline as data URIs. CampusMapArt is the
	// stylized variant and may be absent when stylization returned nothing.
	CampusMap    string `json:"campusMap,omitempty"`
	CampusMapArt string `json:"campusMapArt,omitempty"`
}

// Default returns the built-in aggregate used when neither the remote store
// nor the local cache holds a copy.
func Default() *AppState {
	return &AppState{
		Timetable:    []TimetableEntry{},
		Attendance:   []AttendanceRecord{},
		Exams:        []ExamEntry{},
		Scholarships: []Scholarship{},
		Events:       []Event{},
		Complaints:   []Complaint{},
		Internships:  []Internship{},
	}
}

// Decode parses raw JSON into an AppState after checking structural validity:
// the payload must be a JSON object whose timetable field is an array. Arrays,
// scalars, null and objects missing the timetable collection all fail with
// ErrInvalidShape.
func Decode(data []byte) (*AppState, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, ErrInvalidShape
	}
	if probe == nil {
		return nil, ErrInvalidShape
	}
	timetable, ok := probe["timetable"]
	if !ok || isJSONNull(timetable) {
		return nil, ErrInvalidShape
	}
	var entries []TimetableEntry
	if err := json.Unmarshal(timetable, &entries); err != nil {
		return nil, ErrInvalidShape
	}
	var st AppState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, ErrInvalidShape
	}
	return &st, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Encode serializes the aggregate. The encoded form is also what the size
// ceiling is measured against before a remote write.
func (s *AppState) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// Clone returns a deep copy so callers can mutate a snapshot without racing
// the coordinator's authoritative copy.
func (s *AppState) Clone() *AppState {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return Default()
	}
	var out AppState
	if err := json.Unmarshal(data, &out); err != nil {
		return Default()
	}
	return &out
}

// Equal reports whether two aggregates hold the same data. Used by the poll
// scheduler to decide whether a refresh actually changed anything.
func (s *AppState) Equal(other *AppState) bool {
	if s == nil || other == nil {
		return s == other
	}
	a, err := json.Marshal(s)
	if err != nil {
		return false
	}
	b, err := json.Marshal(other)
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}
