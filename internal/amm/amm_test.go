package amm

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func orderedPair(t *testing.T) (solana.PublicKey, solana.PublicKey) {
	t.Helper()
	a, b, _, err := OrderMints(solana.NewWallet().PublicKey(), solana.WrappedSol)
	require.NoError(t, err)
	return a, b
}

func TestOrderMints(t *testing.T) {
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()

	t0, t1, swapped, err := OrderMints(a, b)
	require.NoError(t, err)
	assert.Negative(t, bytes.Compare(t0.Bytes(), t1.Bytes()))
	assert.Equal(t, swapped, t0.Equals(b))

	_, _, _, err = OrderMints(a, a)
	assert.ErrorIs(t, err, ErrSameMint)
}

func TestCreatePoolRequestValidate(t *testing.T) {
	t0, t1 := orderedPair(t)
	base := CreatePoolRequest{AmmConfig: AmmConfig25Bps, Token0Mint: t0, Token1Mint: t1, Token0Amount: 1, Token1Amount: 1}

	tests := []struct {
		name string
		mut  func(*CreatePoolRequest)
		want error
	}{
		{name: "valid", mut: func(*CreatePoolRequest) {}},
		{name: "reversed", mut: func(r *CreatePoolRequest) { r.Token0Mint, r.Token1Mint = r.Token1Mint, r.Token0Mint }, want: ErrUnordered},
		{name: "same", mut: func(r *CreatePoolRequest) { r.Token1Mint = r.Token0Mint }, want: ErrSameMint},
		{name: "zero", mut: func(r *CreatePoolRequest) { r.Token1Amount = 0 }, want: ErrZeroAmount},
		{name: "no config", mut: func(r *CreatePoolRequest) { r.AmmConfig = solana.PublicKey{} }, want: ErrMissingConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mut(&r)
			err := r.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestSimulatorCreatePool(t *testing.T) {
	sim := NewSimulator(CPMMProgramDevnet, zaptest.NewLogger(t))
	t0, t1 := orderedPair(t)
	req := CreatePoolRequest{
		AmmConfig:    AmmConfig25Bps,
		Token0Mint:   t0,
		Token1Mint:   t1,
		Token0Amount: 200_000_000 * 1_000_000_000,
		Token1Amount: 460_000_000_000,
		Creator:      solana.NewWallet().PublicKey(),
	}

	res, err := sim.CreatePool(context.Background(), req)
	require.NoError(t, err)

	addrs, err := DerivePoolAddresses(CPMMProgramDevnet, AmmConfig25Bps, t0, t1)
	require.NoError(t, err)
	assert.Equal(t, addrs.Pool, res.Pool)
	assert.Equal(t, addrs.LPMint, res.LPMint)

	pool, ok := sim.Pool(res.Pool)
	require.True(t, ok)
	assert.Equal(t, req.Token0Amount, pool.Reserve0)
	assert.Equal(t, req.Token1Amount, pool.Reserve1)
	assert.Equal(t, pool.LPSupply-LockedLiquidity, res.LPAmount)

	_, err = sim.CreatePool(context.Background(), req)
	assert.ErrorIs(t, err, ErrPoolExists)
	assert.Len(t, sim.Pools(), 1)
	assert.Equal(t, 2, sim.Calls())
}

func TestSimulatorFailNext(t *testing.T) {
	sim := NewSimulator(CPMMProgramDevnet, zaptest.NewLogger(t))
	t0, t1 := orderedPair(t)
	req := CreatePoolRequest{AmmConfig: AmmConfig25Bps, Token0Mint: t0, Token1Mint: t1, Token0Amount: 1 << 20, Token1Amount: 1 << 20}

	boom := errors.New("rpc down")
	sim.FailNext(boom)
	_, err := sim.CreatePool(context.Background(), req)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, sim.Pools())

	_, err = sim.CreatePool(context.Background(), req)
	assert.NoError(t, err)
}

func TestBuildInitializeInstruction(t *testing.T) {
	t0, t1 := orderedPair(t)
	creator := solana.NewWallet().PublicKey()
	req := CreatePoolRequest{
		AmmConfig:    AmmConfig25Bps,
		Token0Mint:   t0,
		Token1Mint:   t1,
		Token0Amount: 5,
		Token1Amount: 7,
		OpenTime:     1_700_000_000,
	}

	ix, addrs, err := BuildInitializeInstruction(CPMMProgramDevnet, CreatePoolFeeReceiverDevnet, creator, req)
	require.NoError(t, err)
	assert.Equal(t, CPMMProgramDevnet, ix.ProgramID())

	accounts := ix.Accounts()
	require.Len(t, accounts, 20)
	assert.True(t, accounts[0].IsSigner)
	assert.Equal(t, creator, accounts[0].PublicKey)
	assert.Equal(t, addrs.Pool, accounts[3].PublicKey)
	assert.Equal(t, t0, accounts[4].PublicKey)
	assert.Equal(t, t1, accounts[5].PublicKey)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 8+24)
	assert.Equal(t, instructionDiscriminator("initialize"), data[:8])
	assert.Equal(t, byte(5), data[8])
	assert.Equal(t, byte(7), data[16])
}

type fakeSigner struct {
	key solana.PrivateKey
}

func (s fakeSigner) Address() solana.PublicKey { return s.key.PublicKey() }

func (s fakeSigner) SignTransaction(tx *solana.Transaction) error {
	_, err := tx.Sign(func(k solana.PublicKey) *solana.PrivateKey {
		if k.Equals(s.key.PublicKey()) {
			return &s.key
		}
		return nil
	})
	return err
}

type fakeRPC struct {
	mu        sync.Mutex
	sendErrs  []error
	sent      int
	statusErr interface{}
}

func (f *fakeRPC) GetLatestBlockhash(context.Context, rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{Blockhash: solana.Hash{1}}}, nil
}

func (f *fakeRPC) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, _ rpc.TransactionOpts) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent++
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return solana.Signature{}, err
		}
	}
	return tx.Signatures[0], nil
}

func (f *fakeRPC) GetSignatureStatuses(context.Context, bool, ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{{
		ConfirmationStatus: rpc.ConfirmationStatusConfirmed,
		Err:                f.statusErr,
	}}}, nil
}

func TestCPMMClientRetriesTransientErrors(t *testing.T) {
	fake := &fakeRPC{sendErrs: []error{errors.New("BlockhashNotFound")}}
	signer := fakeSigner{key: solana.NewWallet().PrivateKey}
	client := NewCPMMClient(fake, signer, CPMMConfig{PollInterval: time.Millisecond}, zaptest.NewLogger(t))

	t0, t1 := orderedPair(t)
	res, err := client.CreatePool(context.Background(), CreatePoolRequest{
		AmmConfig: AmmConfig25Bps, Token0Mint: t0, Token1Mint: t1, Token0Amount: 1 << 30, Token1Amount: 1 << 30,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, fake.sent)
	assert.False(t, res.Signature.IsZero())
	assert.Equal(t, uint64(1<<30)-LockedLiquidity, res.LPAmount)
}

func TestCPMMClientStopsOnOnChainFailure(t *testing.T) {
	fake := &fakeRPC{statusErr: map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}}
	signer := fakeSigner{key: solana.NewWallet().PrivateKey}
	client := NewCPMMClient(fake, signer, CPMMConfig{PollInterval: time.Millisecond}, zaptest.NewLogger(t))

	t0, t1 := orderedPair(t)
	_, err := client.CreatePool(context.Background(), CreatePoolRequest{
		AmmConfig: AmmConfig25Bps, Token0Mint: t0, Token1Mint: t1, Token0Amount: 1 << 30, Token1Amount: 1 << 30,
	})
	assert.ErrorIs(t, err, errTxFailed)
	assert.Equal(t, 1, fake.sent)
}
