package domain

import "time"

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	AnimalHash   string    `json:"-"`
	TokenBalance int64     `json:"tokenBalance"`
	CreatedAt    time.Time `json:"createdAt"`
}
