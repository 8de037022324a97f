package common

import "encoding/json"

// 所有枚举在 JSON 中以带引号的字符串形式出现。

// MarshalJSON marshals the enum as a quoted JSON string
func (k DocumentKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON unmarshals a quoted JSON string to the enum value
func (k *DocumentKind) UnmarshalJSON(b []byte) error {
	var jsonStr string
	if err := json.Unmarshal(b, &jsonStr); err != nil {
		return err
	}

	enum, err := NewDocumentKindFromString(jsonStr)
	if err != nil {
		return err
	}

	*k = enum
	return nil
}

// MarshalJSON marshals the enum as a quoted JSON string
func (s DocumentStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON unmarshals a quoted JSON string to the enum value
func (s *DocumentStatus) UnmarshalJSON(b []byte) error {
	var jsonStr string
	if err := json.Unmarshal(b, &jsonStr); err != nil {
		return err
	}

	enum, err := NewDocumentStatusFromString(jsonStr)
	if err != nil {
		return err
	}

	*s = enum
	return nil
}

// MarshalJSON marshals the enum as a quoted JSON string
func (m VerificationMethod) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON unmarshals a quoted JSON string to the enum value
func (m *VerificationMethod) UnmarshalJSON(b []byte) error {
	var jsonStr string
	if err := json.Unmarshal(b, &jsonStr); err != nil {
		return err
	}

	enum, err := NewVerificationMethodFromString(jsonStr)
	if err != nil {
		return err
	}

	*m = enum
	return nil
}

// MarshalJSON marshals the enum as a quoted JSON string
func (s VerificationState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON unmarshals a quoted JSON string to the enum value
func (s *VerificationState) UnmarshalJSON(b []byte) error {
	var jsonStr string
	if err := json.Unmarshal(b, &jsonStr); err != nil {
		return err
	}

	enum, err := NewVerificationStateFromString(jsonStr)
	if err != nil {
		return err
	}

	*s = enum
	return nil
}

// MarshalJSON marshals the enum as a quoted JSON string
func (s RegistrationState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
