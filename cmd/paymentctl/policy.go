package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/josh-kwaku/qmoney-payment/internal/domain"
	"github.com/josh-kwaku/qmoney-payment/internal/repository"
)

func policyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect and seed policies",
	}
	cmd.AddCommand(policyCreateCmd(), policyShowCmd())
	return cmd
}

func policyCreateCmd() *cobra.Command {
	var value int64

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an idle policy ready to receive a payment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			p := &domain.Policy{ID: uuid.New(), Status: domain.PolicyStatusIdle, Value: value}
			if err := repository.NewPolicyRepository(db).Create(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.ID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&value, "value", 0, "policy value")
	return cmd
}

func policyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <policy-id>",
		Short: "Show a policy with its payments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid policy id: %w", err)
			}

			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			policy, err := repository.NewPolicyRepository(db).GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			paymentRepo := repository.NewPaymentRepository(db, 1)
			payments, err := paymentRepo.ListByPolicy(cmd.Context(), id)
			if err != nil {
				return err
			}
			outstanding, err := paymentRepo.CountOutstanding(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "policy %s status=%s value=%d outstanding=%d\n", policy.ID, policy.Status, policy.Value, outstanding)
			for _, p := range payments {
				fmt.Fprintf(out, "  payment %s status=%s amount=%d payer=%s\n", p.ID, p.Status, p.Amount, p.PayerWallet)
			}
			return nil
		},
	}
}
