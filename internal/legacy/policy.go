package legacy

import (
	"zeuxkit.dev/internal/diag"
)

// Prompter asks the user a yes/no question.
type Prompter interface {
	Confirm(question string) bool
}

// Policy decides what happens to password-protected worlds.
type Policy struct {
	// AutoDecrypt decrypts without asking.
	AutoDecrypt bool
	// Standalone disables the prompt; only AutoDecrypt can unlock.
	Standalone bool
	// Prompter is nil when there is no interactive surface, in which case
	// protected worlds are decrypted.
	Prompter Prompter
	// MaxPath bounds the backup file name.
	MaxPath  int
	Reporter diag.Reporter
}

const decryptQuestion = "This world may be password protected. Decrypt it?"

func (p Policy) allowDecrypt() bool {
	if p.AutoDecrypt {
		return true
	}
	if p.Standalone {
		return false
	}
	return p.Prompter == nil || p.Prompter.Confirm(decryptQuestion)
}

// ValidateWithPolicy validates path and, when it is protected and the policy
// allows it, decrypts it in place and validates once more. A world that is
// still protected afterwards yields Aborted.
func ValidateWithPolicy(path string, savegame bool, p Policy) Validation {
	rep := diag.OrDiscard(p.Reporter)
	v := Validate(path, savegame, rep)
	if v.Result != Protected {
		return v
	}

	if p.allowDecrypt() {
		if err := Decrypt(path, DecryptOptions{MaxPath: p.MaxPath}); err != nil {
			rep.Report(err)
		}
		v = Validate(path, savegame, rep)
		if v.Result != Protected {
			return v
		}
	}

	err := diag.New(diag.CodeWorldLocked, path, diag.ErrLocked)
	rep.Report(err)
	return Validation{Result: Aborted, Method: v.Method, Err: err}
}
