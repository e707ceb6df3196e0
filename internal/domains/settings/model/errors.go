package model

import "errors"

var (
	ErrSettingsNotFound = errors.New("settings not found")
	ErrNoFieldsToUpdate = errors.New("no settings fields to update")
)
