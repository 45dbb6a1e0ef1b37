package model

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

type IDType string

const (
	IDTypeItem   IDType = "item"
	IDTypeTask   IDType = "task"
	IDTypeWorker IDType = "worker"
)

var validIDTypes = map[IDType]bool{
	IDTypeItem:   true,
	IDTypeTask:   true,
	IDTypeWorker: true,
}

var idRegex = regexp.MustCompile(`^(item|task|worker)_[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// GenerateID returns a new typed identifier, e.g. "item_<uuid>".
func GenerateID(idType IDType) (string, error) {
	if !validIDTypes[idType] {
		return "", fmt.Errorf("invalid ID type: %s", idType)
	}
	return fmt.Sprintf("%s_%s", idType, uuid.NewString()), nil
}

// ValidateID reports whether id matches the typed identifier format.
func ValidateID(id string) bool {
	return idRegex.MatchString(id)
}

// ParseIDType extracts the type prefix from a typed identifier.
func ParseIDType(id string) (IDType, error) {
	if !ValidateID(id) {
		return "", fmt.Errorf("invalid ID format: %s", id)
	}
	match := idRegex.FindStringSubmatch(id)
	return IDType(match[1]), nil
}
