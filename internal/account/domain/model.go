package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/premium/internal/reference"
)

const (
	KindUser         = "user"
	KindOrganization = "organization"
)

type Organization struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null"`
	UpdatedAt time.Time    `gorm:"not null"`
}

func (Organization) TableName() string { return "organizations" }

func (o *Organization) Reference() reference.Ref {
	return reference.NewRef(KindOrganization, o.ID)
}

type User struct {
	ID          snowflake.ID  `gorm:"primaryKey"`
	OrgID       *snowflake.ID `gorm:"column:org_id;index"`
	Username    string        `gorm:"type:text;not null;uniqueIndex"`
	DisplayName string        `gorm:"type:text;not null;default:''"`
	CreatedAt   time.Time     `gorm:"not null"`
	UpdatedAt   time.Time     `gorm:"not null"`
}

func (User) TableName() string { return "users" }

func (u *User) Reference() reference.Ref {
	return reference.NewRef(KindUser, u.ID)
}
