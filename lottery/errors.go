package lottery

import (
	"fmt"

	"github.com/dedis/tokenlottery/address"
	"golang.org/x/xerrors"
)

var (
	// ErrDuplicateInitialization matches every DuplicateInitializationError.
	ErrDuplicateInitialization = xerrors.New("already initialized")
	ErrInvalidWindow           = xerrors.New("start must be before end")
	ErrInvalidPrice            = xerrors.New("ticket price must be positive")
	ErrInvalidConfig           = xerrors.New("malformed lottery record")

	ErrLotteryNotOpen             = xerrors.New("lottery is not open")
	ErrNotAuthorized              = xerrors.New("not authorized")
	ErrRandomnessAlreadyRevealed  = xerrors.New("randomness already revealed")
	ErrIncorrectRandomnessAccount = xerrors.New("incorrect randomness account")
	ErrLotteryNotCompleted        = xerrors.New("lottery not completed")
	ErrWinnerChosen               = xerrors.New("winner already chosen")
	ErrRandomnessNotResolved      = xerrors.New("randomness not resolved")
	ErrNoTickets                  = xerrors.New("no tickets sold")
	ErrWinnerNotChosen            = xerrors.New("winner not chosen")
	ErrNotVerified                = xerrors.New("ticket not verified")
	ErrIncorrectTicket            = xerrors.New("incorrect ticket")
	ErrNoTicket                   = xerrors.New("no ticket")
)

// DuplicateInitializationError is returned when a create operation finds
// its derived address already in use.
type DuplicateInitializationError struct {
	Kind    string
	Address address.Address
}

func (e *DuplicateInitializationError) Error() string {
	return fmt.Sprintf("%s at %s already initialized", e.Kind, e.Address)
}

// Is makes xerrors.Is(err, ErrDuplicateInitialization) hold.
func (e *DuplicateInitializationError) Is(target error) bool {
	return target == ErrDuplicateInitialization
}

// ModuleError is a rejection by the token or the metadata module during
// one step of an orchestration.
type ModuleError struct {
	Module string
	Step   string
	Err    error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("%s module rejected %s: %v", e.Module, e.Step, e.Err)
}

func (e *ModuleError) Unwrap() error {
	return e.Err
}

func tokenError(step string, err error) error {
	return &ModuleError{Module: "token", Step: step, Err: err}
}

func registryError(step string, err error) error {
	return &ModuleError{Module: "metadata", Step: step, Err: err}
}
