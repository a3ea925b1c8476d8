package models

import (
	"time"

	"github.com/plantpulse/pulse_backend/config"
)

// User is a dashboard login. Sessions live in redis under Token:$uuid; the
// user row itself is cached under User:$username.
type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email     *string   `gorm:"size:100;unique" json:"email"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	IsActive  *bool     `gorm:"not null" json:"is_active"`
	Role      UserRole  `gorm:"size:1;default:V" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

/*
caches:
	User:$username
	Token:$token
*/

func (user User) CacheInstanceRedis() error {
	return config.SetRedisObject("User:"+user.Username, user, 24*time.Hour)
}

func (user User) RemoveInstanceRedis() error {
	return config.RemoveRedisKey("User:" + user.Username)
}
