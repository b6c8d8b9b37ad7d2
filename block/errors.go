package block

import "github.com/mdf4kit/mdf4/errs"

func errMismatch(got, want string) error {
	return errs.NewMalformedBlock(0, "block tag mismatch: got "+got+" want "+want)
}
