// ldapauth checks directory credentials and group authorization from the
// command line, using the same client library a hosting authenticator would.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"syscall"

	"github.com/docopt/docopt-go"
	"golang.org/x/term"

	"github.com/querypath/ldapauth/internal/config"
	"github.com/querypath/ldapauth/internal/directory"
)

// set via linker flags
var version = "dev"

const usage = `ldapauth.
Usage:
	ldapauth validate <principal-dn> [--conf <filename>]
	ldapauth member <group-filter> [--base <dn>] [--conf <filename>]
	ldapauth lookup <filter> [--base <dn>] [--conf <filename>]
	ldapauth ping [--conf <filename>]
	ldapauth -h | --help
	ldapauth --version
Options:
	--conf <filename>  Configuration file to use [default: ldapauth.yaml].
	--base <dn>        Search base, overriding directory.search_base.
	-h --help          Show this screen.
	--version          Show version.`

func getPasswordFromTerminal() string {
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		log.Fatal("error reading password: ", err.Error())
	}
	return string(bytePassword)
}

func main() {
	arguments, _ := docopt.ParseArgs(usage, nil, version)

	confPath := arguments["--conf"].(string)
	cfg, err := config.Load(confPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := cfg.BuildLogger()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	endpoint, err := cfg.EndpointConfig(logger)
	if err != nil {
		log.Fatal(err)
	}
	client, err := directory.NewClient(endpoint)
	if err != nil {
		log.Fatal(err)
	}

	searchBase := cfg.Directory.SearchBase
	if base, ok := arguments["--base"].(string); ok && base != "" {
		searchBase = base
	}

	ctx := context.Background()

	switch {
	case arguments["validate"].(bool):
		principal := arguments["<principal-dn>"].(string)
		password := os.Getenv("LDAPAUTH_PASSWORD")
		if password == "" && term.IsTerminal(int(syscall.Stdin)) {
			fmt.Print("Enter password: ")
			password = getPasswordFromTerminal()
			fmt.Print("\n")
		}
		err := client.ValidatePassword(ctx, principal, password)
		switch {
		case err == nil:
			fmt.Println("password accepted")
		case directory.IsAccessDenied(err):
			fmt.Println("access denied:", err)
			os.Exit(1)
		default:
			fmt.Println("directory error:", err)
			os.Exit(2)
		}

	case arguments["member"].(bool):
		filter := arguments["<group-filter>"].(string)
		ok, err := client.IsGroupMember(ctx, searchBase, filter, cfg.Directory.BindDN, cfg.Directory.BindPassword)
		if err != nil {
			fmt.Println("directory error:", err)
			os.Exit(2)
		}
		if !ok {
			fmt.Println("no match")
			os.Exit(1)
		}
		fmt.Println("member")

	case arguments["lookup"].(bool):
		filter := arguments["<filter>"].(string)
		dns, err := client.LookupDistinguishedNames(ctx, searchBase, filter, cfg.Directory.BindDN, cfg.Directory.BindPassword)
		if err != nil {
			fmt.Println("directory error:", err)
			os.Exit(2)
		}
		sorted := make([]string, 0, len(dns))
		for dn := range dns {
			sorted = append(sorted, dn)
		}
		sort.Strings(sorted)
		for _, dn := range sorted {
			fmt.Println(dn)
		}

	case arguments["ping"].(bool):
		if err := client.Ping(ctx, cfg.Directory.BindDN, cfg.Directory.BindPassword); err != nil {
			fmt.Println("directory error:", err)
			os.Exit(2)
		}
		fmt.Println("directory reachable")
	}
}
