package store

// Project is the top-level organizational unit.
type Project struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// Environment belongs to a project; its name is unique within that project.
type Environment struct {
	ID          uint64 `json:"id"`
	ProjectID   uint64 `json:"project_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// Variable belongs to an environment. EncryptedValue is an opaque
// nonce||ciphertext||tag blob; the store never sees plaintext.
type Variable struct {
	ID             uint64 `json:"id"`
	EnvironmentID  uint64 `json:"environment_id"`
	Key            string `json:"key"`
	EncryptedValue []byte `json:"encrypted_value"`
	Description    string `json:"description,omitempty"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

// Stats are the non-sensitive counts shown in backup previews.
type Stats struct {
	Projects     int `json:"projectCount"`
	Environments int `json:"environmentCount"`
	Variables    int `json:"variableCount"`
}
