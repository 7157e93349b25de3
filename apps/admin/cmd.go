package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/user"
)

var errHelp = errors.New("help provided")

// cliActor is the identity the admin tool acts as.
var cliActor = user.User{Username: "admin-cli", Role: core.RoleAdmin, IsActive: true}

type commandLine struct {
	db     *sqlx.DB
	conf   *core.Config
	usrSvc user.ServiceInterface
	trans  ut.Translator
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a migration command (up, up-by-one, up-to, down, down-to, redo, reset, status, version)")
	fmt.Fprintln(cli.out, "  adduser -name NAME -username USERNAME -role ROLE [-email EMAIL] [-class CLASS_ID] - create or reactivate a user")
	fmt.Fprintln(cli.out, "  linkparent -parent USERNAME -child USERNAME - link a parent to a student")
	fmt.Fprintln(cli.out, "  token -username USERNAME - print an API token for a user")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email (optional).")
	addUserRole := addUserCmd.String("role", "", "One of: admin, director, teacher, student, parent.")
	addUserClass := addUserCmd.String("class", "", "The class ID of a student.")

	linkParentCmd := flag.NewFlagSet("linkparent", flag.ContinueOnError)
	linkParentParent := linkParentCmd.String("parent", "", "The parent's username.")
	linkParentChild := linkParentCmd.String("child", "", "The student's username.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenUname := tokenCmd.String("username", "", "The user's username.")

	for _, fs := range []*flag.FlagSet{addUserCmd, linkParentCmd, tokenCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserName == "" || *addUserUname == "" || *addUserRole == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.translateErr(cli.addUser(user.NewUser{
			Name:     *addUserName,
			Username: *addUserUname,
			Email:    *addUserEmail,
			Role:     core.Role(*addUserRole),
			ClassID:  *addUserClass,
		}))
	case "linkparent":
		if err := linkParentCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *linkParentParent == "" || *linkParentChild == "" {
			linkParentCmd.Usage()
			return errHelp
		}
		return cli.linkParent(*linkParentParent, *linkParentChild)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *tokenUname == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenUname)
	default:
		cli.printUsage()
		return errHelp
	}
}

// translateErr turns validation failures into "field: message" lines.
func (cli *commandLine) translateErr(err error) error {
	vErrs, ok := errors.Cause(err).(validator.ValidationErrors)
	if !ok || cli.trans == nil {
		return err
	}
	msgs := make([]string, 0, len(vErrs))
	for _, vErr := range vErrs {
		msgs = append(msgs, vErr.Field()+": "+vErr.Translate(cli.trans))
	}
	return errors.New(strings.Join(msgs, "; "))
}
