package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	echoapi "github.com/trezcool/learnsphere/apps/api/echo"
	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/user"
)

// addUser creates a user, or reactivates it when the username is taken.
func (cli *commandLine) addUser(nu user.NewUser) error {
	ctx := context.Background()

	usr, err := cli.usrSvc.GetByUsername(ctx, core.CleanString(nu.Username, true /* lower */))
	switch {
	case core.IsNotFound(err):
		if usr, err = cli.usrSvc.Create(ctx, cliActor, nu); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "created %s %q (%s)\n", usr.Role, usr.Username, usr.ID)
		return nil
	case err != nil:
		return errors.Wrap(err, "finding user")
	}

	active := true
	uu := user.UpdateUser{Name: nu.Name, IsActive: &active}
	if nu.Email != "" {
		uu.Email = &nu.Email
	}
	if usr, err = cli.usrSvc.Update(ctx, cliActor, usr.ID, uu); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "updated %s %q (%s)\n", usr.Role, usr.Username, usr.ID)
	return nil
}

func (cli *commandLine) linkParent(parentUname, childUname string) error {
	ctx := context.Background()

	parent, err := cli.usrSvc.GetByUsername(ctx, core.CleanString(parentUname, true /* lower */))
	if err != nil {
		return err
	}
	child, err := cli.usrSvc.GetByUsername(ctx, core.CleanString(childUname, true /* lower */))
	if err != nil {
		return err
	}
	if err = cli.usrSvc.LinkParent(ctx, cliActor, parent.ID, child.ID); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "linked %q to %q\n", parent.Username, child.Username)
	return nil
}

// token prints a signed API token for an active user.
func (cli *commandLine) token(uname string) error {
	usr, err := cli.usrSvc.GetByUsername(context.Background(), core.CleanString(uname, true /* lower */))
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return errors.Errorf("user %q is deactivated", usr.Username)
	}
	tok, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr, cli.conf), cli.conf.SecretKey)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, tok)
	return nil
}
