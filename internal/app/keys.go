package app

import "github.com/cimillas/checkin-pay/internal/domain"

const (
	confirmPrefix = "confirm/"
	orderPrefix   = "order/"
	returnPrefix  = "return/"
	holdPrefix    = "hold/"
)

func confirmKey(orderID string) string { return confirmPrefix + orderID }

func orderKey(orderID string) string { return orderPrefix + orderID }

func returnKey(orderID string) string { return returnPrefix + orderID }

func holdKey(subject domain.Subject) string {
	return holdPrefix + string(subject.Type) + "/" + subject.ID
}
