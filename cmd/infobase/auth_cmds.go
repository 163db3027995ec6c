package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alphabot-ai/infobase/internal/keys"
	"github.com/alphabot-ai/infobase/internal/model"
)

type keyPair interface {
	keys.Signer
	PrivateKey() string
}

func generateKey(alg string) (keyPair, error) {
	switch strings.ToLower(alg) {
	case keys.AlgEd25519:
		return keys.GenerateEd25519()
	case keys.AlgSecp256k1:
		return keys.GenerateSecp256k1()
	}
	return nil, fmt.Errorf("unsupported key algorithm %q", alg)
}

func loadSigner(alg, private string) (keys.Signer, error) {
	if private == "" {
		private = os.Getenv("INFOBASE_PRIVATE_KEY")
	}
	if private == "" {
		return nil, errors.New("a private key is required (--private-key or INFOBASE_PRIVATE_KEY)")
	}
	switch strings.ToLower(alg) {
	case keys.AlgEd25519:
		return keys.Ed25519FromPrivate(private)
	case keys.AlgSecp256k1:
		return keys.Secp256k1FromHex(private)
	}
	return nil, fmt.Errorf("unsupported key algorithm %q", alg)
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	kp, err := generateKey(keyAlg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "alg:         %s\n", kp.Alg())
	fmt.Fprintf(out, "public key:  %s\n", kp.PublicKey())
	fmt.Fprintf(out, "private key: %s\n", kp.PrivateKey())
	return nil
}

func runRegister(cmd *cobra.Command, a *app, _ []string) error {
	ctx := cmd.Context()
	in := model.RegisterInput{
		Email:    regEmail,
		Password: regPassword,
		Name:     regName,
		Avatar:   regAvatar,
		Skills:   regSkills,
		Project:  regProject,
	}
	var kp keyPair
	if regKeyAlg != "" {
		var err error
		if kp, err = generateKey(regKeyAlg); err != nil {
			return err
		}
		in.Alg = kp.Alg()
		in.PublicKey = kp.PublicKey()
	}

	if _, err := a.client.Register(ctx, in); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	user, err := a.forum.Session().Login(ctx, regEmail, regPassword)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Registered and logged in as %s (#%d)\n", user.Name, user.ID)
	if kp != nil {
		fmt.Fprintf(out, "Signing key (%s), keep the private key safe:\n", kp.Alg())
		fmt.Fprintf(out, "  public key:  %s\n", kp.PublicKey())
		fmt.Fprintf(out, "  private key: %s\n", kp.PrivateKey())
	}
	return nil
}

func runLogin(cmd *cobra.Command, a *app, _ []string) error {
	user, err := a.forum.Session().Login(cmd.Context(), loginEmail, loginPass)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (#%d)\n", user.Name, user.ID)
	return nil
}

func runLoginKey(cmd *cobra.Command, a *app, _ []string) error {
	signer, err := loadSigner(keyAlg, keyPrivate)
	if err != nil {
		return err
	}
	user, err := a.forum.Session().LoginWithSigner(cmd.Context(), signer)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (#%d) with %s key\n", user.Name, user.ID, signer.Alg())
	return nil
}

func runLogout(cmd *cobra.Command, a *app, _ []string) error {
	if !a.forum.Session().LoggedIn() {
		fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
		return nil
	}
	if err := a.forum.Session().Logout(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}

func runWhoami(cmd *cobra.Command, a *app, _ []string) error {
	out := cmd.OutOrStdout()
	user, ok := a.forum.Session().User()
	if !ok {
		fmt.Fprintf(out, "Not logged in (%s)\n", a.cfg.APIURL)
		return nil
	}
	fmt.Fprintf(out, "%s (#%d) on %s\n", user.Name, user.ID, a.cfg.APIURL)
	if len(user.Skills) > 0 {
		fmt.Fprintf(out, "skills:  %s\n", strings.Join(user.Skills, ", "))
	}
	if user.Project != "" {
		fmt.Fprintf(out, "project: %s\n", user.Project)
	}
	return nil
}
