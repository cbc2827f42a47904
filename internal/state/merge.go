package state

import (
	"encoding/json"
	"errors"
	"strings"
)

// Category tags one of the aggregate's record collections.
type Category string

const (
	CategoryTimetable    Category = "timetable"
	CategoryAttendance   Category = "attendance"
	CategoryExams        Category = "exams"
	CategoryScholarships Category = "scholarships"
	CategoryEvents       Category = "events"
	CategoryComplaints   Category = "complaints"
	CategoryInternships  Category = "internships"
)

var errUnknownCategory = errors.New("unknown category")

// ParseCategory normalizes a category tag coming off the wire.
func ParseCategory(value string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(value))) {
	case CategoryTimetable:
		return CategoryTimetable, nil
	case CategoryAttendance:
		return CategoryAttendance, nil
	case CategoryExams:
		return CategoryExams, nil
	case CategoryScholarships:
		return CategoryScholarships, nil
	case CategoryEvents:
		return CategoryEvents, nil
	case CategoryComplaints:
		return CategoryComplaints, nil
	case CategoryInternships:
		return CategoryInternships, nil
	}
	return "", errUnknownCategory
}

// MergeTimetable reconciles freshly extracted timetable entries into the
// aggregate. An entry matching an existing (day, branch, year, division)
// composite key appends its slots to that entry; anything else is appended as
// a new entry. Arrival order is preserved in both cases.
func (s *AppState) MergeTimetable(entries []TimetableEntry) {
	for _, entry := range entries {
		idx := s.findTimetable(entry.Day, entry.Branch, entry.Year, entry.Division)
		if idx >= 0 {
			s.Timetable[idx].Slots = append(s.Timetable[idx].Slots, entry.Slots...)
			continue
		}
		s.Timetable = append(s.Timetable, entry)
	}
}

func (s *AppState) findTimetable(day, branch, year, division string) int {
	for i, entry := range s.Timetable {
		if entry.Day == day && entry.Branch == branch && entry.Year == year && entry.Division == division {
			return i
		}
	}
	return -1
}

// ApplyRecords merges a batch of raw records for a category into the
// aggregate. Timetable follows the composite-key merge; every other
// collection is append-only with no deduplication. Returns the number of
// records applied.
func (s *AppState) ApplyRecords(category Category, records []json.RawMessage) (int, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return 0, err
	}
	switch category {
	case CategoryTimetable:
		var entries []TimetableEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return 0, err
		}
		s.MergeTimetable(entries)
		return len(entries), nil
	case CategoryAttendance:
		var recs []AttendanceRecord
		if err := json.Unmarshal(data, &recs); err != nil {
			return 0, err
		}
		s.Attendance = append(s.Attendance, recs...)
		return len(recs), nil
	case CategoryExams:
		var recs []ExamEntry
		if err := json.Unmarshal(data, &recs); err != nil {
			return 0, err
		}
		s.Exams = append(s.Exams, recs...)
		return len(recs), nil
	case CategoryScholarships:
		var recs []Scholarship
		if err := json.Unmarshal(data, &recs); err != nil {
			return 0, err
		}
		s.Scholarships = append(s.Scholarships, recs...)
		return len(recs), nil
	case CategoryEvents:
		var recs []Event
		if err := json.Unmarshal(data, &recs); err != nil {
			return 0, err
		}
		s.Events = append(s.Events, recs...)
		return len(recs), nil
	case CategoryComplaints:
		var recs []Complaint
		if err := json.Unmarshal(data, &recs); err != nil {
			return 0, err
		}
		for i := range recs {
			if recs[i].Status == "" {
				recs[i].Status = ComplaintPending
			}
		}
		s.Complaints = append(s.Complaints, recs...)
		return len(recs), nil
	case CategoryInternships:
		var recs []Internship
		if err := json.Unmarshal(data, &recs); err != nil {
			return 0, err
		}
		s.Internships = append(s.Internships, recs...)
		return len(recs), nil
	}
	return 0, errUnknownCategory
}

// DeleteRecord removes the record with the given identifier from a
// collection, preserving the relative order of everything else. Reports
// whether a record was removed.
func (s *AppState) DeleteRecord(category Category, id string) bool {
	switch category {
	case CategoryTimetable:
		for i, entry := range s.Timetable {
			if entry.ID == id {
				s.Timetable = append(s.Timetable[:i], s.Timetable[i+1:]...)
				return true
			}
		}
	case CategoryAttendance:
		for i, rec := range s.Attendance {
			if rec.ID == id {
				s.Attendance = append(s.Attendance[:i], s.Attendance[i+1:]...)
				return true
			}
		}
	case CategoryExams:
		for i, rec := range s.Exams {
			if rec.ID == id {
				s.Exams = append(s.Exams[:i], s.Exams[i+1:]...)
				return true
			}
		}
	case CategoryScholarships:
		for i, rec := range s.Scholarships {
			if rec.ID == id {
				s.Scholarships = append(s.Scholarships[:i], s.Scholarships[i+1:]...)
				return true
			}
		}
	case CategoryEvents:
		for i, rec := range s.Events {
			if rec.ID == id {
				s.Events = append(s.Events[:i], s.Events[i+1:]...)
				return true
			}
		}
	case CategoryComplaints:
		for i, rec := range s.Complaints {
			if rec.ID == id {
				s.Complaints = append(s.Complaints[:i], s.Complaints[i+1:]...)
				return true
			}
		}
	case CategoryInternships:
		for i, rec := range s.Internships {
			if rec.ID == id {
				s.Internships = append(s.Internships[:i], s.Internships[i+1:]...)
				return true
			}
		}
	}
	return false
}

// ToggleComplaint flips the status of the complaint with the given
// identifier between PENDING and RESOLVED. Reports whether it was found.
func (s *AppState) ToggleComplaint(id string) bool {
	for i, complaint := range s.Complaints {
		if complaint.ID != id {
			continue
		}
		if complaint.Status == ComplaintResolved {
			s.Complaints[i].Status = ComplaintPending
		} else {
			s.Complaints[i].Status = ComplaintResolved
		}
		return true
	}
	return false
}
