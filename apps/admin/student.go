package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/trezcool/dormportal/core"
	"github.com/trezcool/dormportal/core/student"
)

func (cli *commandLine) addStudent(name, email string) error {
	st, err := cli.studentSvc.CreateStudent(context.Background(), student.NewStudent{Name: name, Email: email})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "student #%d: %s <%s>\n", st.ID, st.Name, st.Email)
	return nil
}

func (cli *commandLine) listStudents(search string) error {
	students, err := cli.studentSvc.QueryStudents(context.Background(), student.QueryFilter{Search: search})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tADDED")
	for _, st := range students {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", st.ID, st.Name, st.Email, st.CreatedAt.Format(core.DateLayout))
	}
	return w.Flush()
}
