package mockapi

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Seeded mock account credentials.
const (
	MockLoginID  = "test1234"
	MockPassword = "Password123!"
	MockUserID   = "mock-user-id"
	MockNickname = "mock-user"
)

// Account is a user the mock backend can authenticate.
type Account struct {
	LoginID      string `yaml:"loginId"`
	UserID       string `yaml:"userId"`
	Nickname     string `yaml:"nickname"`
	PasswordHash string `yaml:"passwordHash"`
}

// accountsFile is the on-disk format of MOCK_ACCOUNTS_FILE.
type accountsFile struct {
	Accounts []*Account `yaml:"accounts"`
}

// dummyHash is compared against when the login id is unknown so a miss
// costs the same as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), bcrypt.MinCost)

// SeedAccount returns the built-in test account. Its hash uses the
// minimum bcrypt cost; it is a published test credential.
func SeedAccount() (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(MockPassword), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("hashing seed password: %w", err)
	}

	return &Account{
		LoginID:      MockLoginID,
		UserID:       MockUserID,
		Nickname:     MockNickname,
		PasswordHash: string(hash),
	}, nil
}

// LoadAccountsFile reads a YAML accounts file. Every entry needs a login
// id, a user id, and a bcrypt password hash; login ids must be unique.
func LoadAccountsFile(path string) ([]*Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading accounts file: %w", err)
	}

	var f accountsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing accounts file: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Accounts))

	for i, a := range f.Accounts {
		if a == nil || a.LoginID == "" || a.UserID == "" || a.PasswordHash == "" {
			return nil, fmt.Errorf("account %d: loginId, userId and passwordHash are required", i+1)
		}

		if _, err := bcrypt.Cost([]byte(a.PasswordHash)); err != nil {
			return nil, fmt.Errorf("account %q: passwordHash is not a bcrypt hash: %w", a.LoginID, err)
		}

		if _, dup := seen[a.LoginID]; dup {
			return nil, fmt.Errorf("duplicate loginId %q in accounts file", a.LoginID)
		}

		seen[a.LoginID] = struct{}{}
	}

	return f.Accounts, nil
}

// Authenticate checks loginID and password. It returns the account on
// success and nil otherwise.
func (s *Store) Authenticate(loginID, password string) *Account {
	a := s.Account(loginID)

	hash := dummyHash
	if a != nil {
		hash = []byte(a.PasswordHash)
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || a == nil {
		return nil
	}

	return a
}
