package state

import (
	"encoding/json"
	"testing"
)

func TestDecodeRejectsBadShapes(t *testing.T) {
	bad := map[string]string{
		"array":             `[{"timetable":[]}]`,
		"null":              `null`,
		"scalar":            `42`,
		"string":            `"timetable"`,
		"missing timetable": `{"complaints":[]}`,
		"null timetable":    `{"timetable":null}`,
		"object timetable":  `{"timetable":{}}`,
		"truncated":         `{"timetable":[`,
	}
	for name, payload := range bad {
		if _, err := Decode([]byte(payload)); err != ErrInvalidShape {
			t.Fatalf("%s: expected ErrInvalidShape, got %v", name, err)
		}
	}
}

func TestDecodeAcceptsMinimalAggregate(t *testing.T) {
	st, err := Decode([]byte(`{"timetable":[],"complaints":[]}`))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if st.Timetable == nil {
		t.Fatalf("expected timetable to be defined")
	}
	if len(st.Complaints) != 0 {
		t.Fatalf("expected empty complaints, got %d", len(st.Complaints))
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	st := Default()
	st.Timetable = append(st.Timetable, TimetableEntry{
		ID: "tt-1", Day: "Monday", Branch: "CSE", Year: "2", Division: "A",
		Slots: []Slot{{Time: "09:00", Subject: "Maths", Faculty: "Rao", Room: "101"}},
	})
	st.Complaints = append(st.Complaints, Complaint{ID: "c-1", Text: "wifi down", Status: ComplaintPending})

	data, err := st.Encode()
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !st.Equal(decoded) {
		t.Fatalf("round trip changed the aggregate")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	st := Default()
	st.Events = append(st.Events, Event{ID: "e-1", Title: "Tech fest"})
	clone := st.Clone()
	clone.Events[0].Title = "changed"
	clone.Events = append(clone.Events, Event{ID: "e-2", Title: "Sports day"})
	if st.Events[0].Title != "Tech fest" {
		t.Fatalf("clone mutation leaked into original")
	}
	if len(st.Events) != 1 {
		t.Fatalf("clone append leaked into original")
	}
}

func TestEqual(t *testing.T) {
	a := Default()
	b := Default()
	if !a.Equal(b) {
		t.Fatalf("expected two defaults to be equal")
	}
	b.Exams = append(b.Exams, ExamEntry{ID: "x-1", Subject: "Physics", Date: "2026-05-01"})
	if a.Equal(b) {
		t.Fatalf("expected aggregates to differ")
	}
}

func TestMergeTimetableByCompositeKey(t *testing.T) {
	st := Default()
	st.MergeTimetable([]TimetableEntry{{
		ID: "tt-1", Day: "Monday", Branch: "CSE", Year: "2", Division: "A",
		Slots: []Slot{{Time: "09:00", Subject: "Maths"}},
	}})
	st.MergeTimetable([]TimetableEntry{{
		ID: "tt-2", Day: "Monday", Branch: "CSE", Year: "2", Division: "A",
		Slots: []Slot{{Time: "10:00", Subject: "Physics"}},
	}})

	if len(st.Timetable) != 1 {
		t.Fatalf("expected one merged entry, got %d", len(st.Timetable))
	}
	slots := st.Timetable[0].Slots
	if len(slots) != 2 || slots[0].Subject != "Maths" || slots[1].Subject != "Physics" {
		t.Fatalf("expected slots concatenated in arrival order, got %+v", slots)
	}

	st.MergeTimetable([]TimetableEntry{{
		ID: "tt-3", Day: "Tuesday", Branch: "CSE", Year: "2", Division: "A",
		Slots: []Slot{{Time: "09:00", Subject: "Chemistry"}},
	}})
	if len(st.Timetable) != 2 {
		t.Fatalf("expected new composite key to append an entry, got %d", len(st.Timetable))
	}
	if len(st.Timetable[0].Slots) != 2 {
		t.Fatalf("existing entry mutated by unrelated merge")
	}
}

func TestApplyRecordsAppendsWithoutDedup(t *testing.T) {
	st := Default()
	record := json.RawMessage(`{"id":"ev-1","title":"Hackathon"}`)
	for i := 0; i < 2; i++ {
		if _, err := st.ApplyRecords(CategoryEvents, []json.RawMessage{record}); err != nil {
			t.Fatalf("apply error: %v", err)
		}
	}
	if len(st.Events) != 2 {
		t.Fatalf("expected duplicates to be kept, got %d events", len(st.Events))
	}
}

func TestApplyRecordsDefaultsComplaintStatus(t *testing.T) {
	st := Default()
	n, err := st.ApplyRecords(CategoryComplaints, []json.RawMessage{
		json.RawMessage(`{"id":"c-1","text":"projector broken"}`),
	})
	if err != nil || n != 1 {
		t.Fatalf("apply error: n=%d err=%v", n, err)
	}
	if st.Complaints[0].Status != ComplaintPending {
		t.Fatalf("expected default status PENDING, got %s", st.Complaints[0].Status)
	}
}

func TestApplyRecordsUnknownCategory(t *testing.T) {
	st := Default()
	if _, err := st.ApplyRecords(Category("grades"), nil); err == nil {
		t.Fatalf("expected unknown category to error")
	}
}

func TestDeleteRecordPreservesOrder(t *testing.T) {
	st := Default()
	st.Complaints = []Complaint{
		{ID: "a1", Text: "one", Status: ComplaintPending},
		{ID: "abc123", Text: "two", Status: ComplaintPending},
		{ID: "z9", Text: "three", Status: ComplaintResolved},
	}
	if !st.DeleteRecord(CategoryComplaints, "abc123") {
		t.Fatalf("expected delete to find abc123")
	}
	if len(st.Complaints) != 2 || st.Complaints[0].ID != "a1" || st.Complaints[1].ID != "z9" {
		t.Fatalf("expected remaining complaints in original order, got %+v", st.Complaints)
	}
	if st.DeleteRecord(CategoryComplaints, "abc123") {
		t.Fatalf("expected second delete to find nothing")
	}
}

func TestToggleComplaint(t *testing.T) {
	st := Default()
	st.Complaints = []Complaint{{ID: "c-1", Text: "noise", Status: ComplaintPending}}
	if !st.ToggleComplaint("c-1") {
		t.Fatalf("expected toggle to find complaint")
	}
	if st.Complaints[0].Status != ComplaintResolved {
		t.Fatalf("expected RESOLVED, got %s", st.Complaints[0].Status)
	}
	st.ToggleComplaint("c-1")
	if st.Complaints[0].Status != ComplaintPending {
		t.Fatalf("expected PENDING after second toggle, got %s", st.Complaints[0].Status)
	}
	if st.ToggleComplaint("missing") {
		t.Fatalf("expected toggle on unknown id to report false")
	}
}

func TestParseCategory(t *testing.T) {
	if _, err := ParseCategory(" Events "); err != nil {
		t.Fatalf("expected trimmed case-insensitive parse, got %v", err)
	}
	if _, err := ParseCategory("grades"); err == nil {
		t.Fatalf("expected unknown category to error")
	}
}
