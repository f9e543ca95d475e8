package models

import "time"

// Complaint is a classified submission persisted once the analysis pipeline succeeds.
// Rows are never updated; they are only removed by a bulk purge.
type Complaint struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     string    `gorm:"column:userid;size:255;not null;index" json:"userId"`
	Complaint  bool      `gorm:"not null" json:"complaint"`
	Summary    string    `gorm:"type:text;not null" json:"summary"`
	Product    string    `gorm:"size:255;not null" json:"product"`
	SubProduct string    `gorm:"column:sub_product;size:255;not null" json:"subProduct"`
	DateSent   time.Time `gorm:"column:date_sent;not null" json:"dateSent"`
}

// TableName pins the table name shared with existing deployments.
func (Complaint) TableName() string {
	return "complaints"
}
