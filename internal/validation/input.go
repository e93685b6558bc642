package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Константы валидации
const (
	MinUsernameLength       = 3
	MaxUsernameLength       = 30
	MinTitleLength          = 3
	MaxTitleLength          = 200
	MinDescriptionLength    = 10
	MaxDescriptionLength    = 5000
	MinAmount               = 0.0
	MaxAmount               = 100000000.0 // 100 миллионов
	MaxRejectionReasonChars = 1000
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateUsername проверяет имя пользователя.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("имя пользователя обязательно")
	}

	username = strings.TrimSpace(username)

	if err := ValidateLength("имя пользователя", username, MinUsernameLength, MaxUsernameLength); err != nil {
		return err
	}

	// Только буквы, цифры и подчеркивание
	usernameRegex := regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("имя пользователя может содержать только буквы, цифры и подчеркивание")
	}

	if unicode.IsDigit(rune(username[0])) {
		return fmt.Errorf("имя пользователя не может начинаться с цифры")
	}

	return nil
}

// ValidateTitle проверяет заголовок сделки, вехи или спора.
func ValidateTitle(title string) error {
	if err := ValidateNonEmpty("заголовок", title); err != nil {
		return err
	}
	return ValidateLength("заголовок", strings.TrimSpace(title), MinTitleLength, MaxTitleLength)
}

// ValidateDescription проверяет описание.
func ValidateDescription(description string) error {
	if err := ValidateNonEmpty("описание", description); err != nil {
		return err
	}
	return ValidateLength("описание", strings.TrimSpace(description), MinDescriptionLength, MaxDescriptionLength)
}

// ValidateAmount проверяет сумму.
func ValidateAmount(amount float64) error {
	if amount <= MinAmount {
		return fmt.Errorf("сумма должна быть положительной")
	}
	if amount > MaxAmount {
		return fmt.Errorf("сумма не может превышать %.0f", MaxAmount)
	}
	return nil
}

// ValidateCurrency проверяет трёхбуквенный код валюты (ISO 4217).
func ValidateCurrency(currency string) error {
	currencyRegex := regexp.MustCompile(`^[A-Z]{3}$`)
	if !currencyRegex.MatchString(currency) {
		return fmt.Errorf("валюта должна быть трёхбуквенным кодом, например USD")
	}
	return nil
}
