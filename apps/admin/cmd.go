package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/trezcool/dormportal/core"
	"github.com/trezcool/dormportal/core/student"
	"github.com/trezcool/dormportal/core/user"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf       *core.Config
	out        io.Writer
	db         *sql.DB
	usrSvc     user.Service
	studentSvc student.Service
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  createdb - create the database if it does not exist")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  adduser -email EMAIL [-name NAME] - register or refresh a staff member")
	fmt.Fprintln(cli.out, "  addstudent -name NAME -email EMAIL - add a student")
	fmt.Fprintln(cli.out, "  students [-q SEARCH] - list students")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The staff member's email.")
	addUserName := addUserCmd.String("name", "", "The staff member's display name.")

	addStudentCmd := flag.NewFlagSet("addstudent", flag.ContinueOnError)
	addStudentName := addStudentCmd.String("name", "", "The student's name.")
	addStudentEmail := addStudentCmd.String("email", "", "The email reports are sent to.")

	studentsCmd := flag.NewFlagSet("students", flag.ContinueOnError)
	studentsSearch := studentsCmd.String("q", "", "Only list students whose name or email contains SEARCH.")

	for _, fs := range []*flag.FlagSet{addUserCmd, addStudentCmd, studentsCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "createdb":
		return cli.createDB()
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserEmail, *addUserName)
	case "addstudent":
		if err := addStudentCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addStudentName == "" || *addStudentEmail == "" {
			addStudentCmd.Usage()
			return errHelp
		}
		return cli.addStudent(*addStudentName, *addStudentEmail)
	case "students":
		if err := studentsCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.listStudents(*studentsSearch)
	default:
		cli.printUsage()
		return errHelp
	}
}
