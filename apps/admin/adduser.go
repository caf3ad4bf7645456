package main

import (
	"context"
	"fmt"

	"github.com/trezcool/dormportal/core/user"
)

// addUser registers a staff member ahead of their first Google sign-in, or refreshes their name.
func (cli *commandLine) addUser(email, name string) error {
	usr, err := cli.usrSvc.Upsert(context.Background(), user.Claim{Email: email, Name: name})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user #%d: %s <%s>\n", usr.ID, usr.Name, usr.Email)
	return nil
}
