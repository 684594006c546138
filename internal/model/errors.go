package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource or operation is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrUnauthorized is returned when the caller doesn't own the resource.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnauthenticated is returned when there is no resolvable caller identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrCryptoConfig is returned when the credential vault is misconfigured.
	ErrCryptoConfig = errors.New("crypto config not valid")
	// ErrEncryption is returned when a secret can't be encrypted.
	ErrEncryption = errors.New("encryption failed")
	// ErrDecryption is returned when a secret can't be decrypted.
	ErrDecryption = errors.New("decryption failed")
	// ErrSandboxExecution is returned when the sandbox provider fails an operation.
	ErrSandboxExecution = errors.New("sandbox execution failed")
)
