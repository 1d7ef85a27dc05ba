package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cmdKeyGen = &cobra.Command{
	Use:   "gen [identity-file] [recipient-file]",
	Short: "Create a keypair used for encrypting archives",
	Args:  cobra.MaximumNArgs(2),
	Long: strings.TrimSpace(`
Create a new age keypair. If no argument is given, output the identity
(private key) on standard output. If only one argument is given, write the
identity in a file given by the first argument. If both arguments are given,
write the identity in a file given by the first argument and the recipient
(public key) in a file given by the second argument.
	`),
	Run: func(cmd *cobra.Command, args []string) {
		identity, err := age.GenerateX25519Identity()
		if err != nil {
			logrus.Fatal(err)
		}

		identityData := identity.String() + "\n"
		recipientData := identity.Recipient().String() + "\n"

		if len(args) == 0 {
			fmt.Print(identityData)
			return
		}

		err = os.WriteFile(args[0], []byte(identityData), 0600)
		if err != nil {
			logrus.Fatal(err)
		}

		if len(args) == 2 {
			err = os.WriteFile(args[1], []byte(recipientData), 0666)
			if err != nil {
				logrus.Fatal(err)
			}
		}
	},
}

var cmdKeyPub = &cobra.Command{
	Use:   "pub [identity-file] [recipient-file]",
	Short: "Extract recipients from identities",
	Args:  cobra.MaximumNArgs(2),
	Long: strings.TrimSpace(`
Extract the recipients (public keys). If no argument is given, read identities
from stdin and print recipients on stdout. If only one argument is given,
read identities from the file given by the first argument, and print
recipients on stdout.
	`),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		var data []byte

		if len(args) == 0 {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			logrus.Fatal(err)
		}

		identities, err := age.ParseIdentities(bytes.NewReader(data))
		if err != nil {
			logrus.Fatal(err)
		}

		out := bytes.NewBuffer(nil)
		for _, id := range identities {
			x, ok := id.(*age.X25519Identity)
			if !ok {
				logrus.Warnf("skipping unsupported identity type %T", id)
				continue
			}
			fmt.Fprintln(out, x.Recipient().String())
		}

		if len(args) == 2 {
			err = os.WriteFile(args[1], out.Bytes(), 0666)
			if err != nil {
				logrus.Fatal(err)
			}
		} else {
			fmt.Print(out.String())
		}
	},
}

var cmdKey = &cobra.Command{
	Use:   "key",
	Short: "Archive encryption keys management",
}

func init() {
	cmdKey.AddCommand(cmdKeyGen, cmdKeyPub)
}
