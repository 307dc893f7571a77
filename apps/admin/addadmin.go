package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) addAdmin(uname, email, pwd string) error {
	usr, err := cli.usrSvc.CreateAdmin(context.Background(), uname, email, pwd)
	if err != nil {
		return err
	}
	fmt.Printf("admin %q created (uid %s)\n", usr.Username, usr.UID)
	return nil
}
