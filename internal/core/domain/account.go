package domain

type Account struct {
	ID     int64
	UUID   string
	Active bool
}
