package models

import "time"

// Attendance is a per-student attendance record for an event's class.
type Attendance struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"studentId"`
	ClassID   string    `db:"class_id" json:"classId"`
	Date      time.Time `db:"date" json:"date"`
	Present   bool      `db:"present" json:"present"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// AttendancePresenceCount groups attendance rows by presence flag.
type AttendancePresenceCount struct {
	Present bool `db:"present" json:"present"`
	Count   int  `db:"count" json:"count"`
}
