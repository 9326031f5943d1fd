package tss

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/bnb-chain/tss-lib/v2/common"
	ecdsakeygen "github.com/bnb-chain/tss-lib/v2/ecdsa/keygen"
	ecdsasigning "github.com/bnb-chain/tss-lib/v2/ecdsa/signing"
	tsslib "github.com/bnb-chain/tss-lib/v2/tss"
	"golang.org/x/sync/errgroup"

	"mpc-wallet/internal/dto"
	"mpc-wallet/internal/keygen"
	"mpc-wallet/internal/keyshare"
	"mpc-wallet/internal/logger"
	"mpc-wallet/internal/storage/models"
)

// WalletRegistrar stores a completed keygen as a hot wallet.
type WalletRegistrar interface {
	Register(ctx context.Context, req dto.RegisterHotWalletRequest) (*models.Wallet, error)
}

// Ceremony runs an in-process t-of-n tss-lib ECDSA ceremony: all parties
// live in this process and exchange messages over channels. It exists for
// development and wallet bootstrap; the quorum tracker and wallet store see
// exactly the traffic a distributed ceremony would produce.
type Ceremony struct {
	parties   int
	threshold int
	cipher    *keyshare.Cipher
	tracker   *keygen.Tracker
	wallets   WalletRegistrar
}

// Result carries everything a finished ceremony produced. SaveData stays in
// memory only; the persisted form is the encrypted envelopes.
type Result struct {
	KeygenID  string
	WalletID  string
	PubkeyHex string
	PartyIDs  tsslib.SortedPartyIDs
	SaveData  []*ecdsakeygen.LocalPartySaveData
	Encrypted []dto.EncryptedKeygenWithScheme
}

func NewCeremony(parties, threshold int, cipher *keyshare.Cipher, tracker *keygen.Tracker, wallets WalletRegistrar) *Ceremony {
	return &Ceremony{
		parties:   parties,
		threshold: threshold,
		cipher:    cipher,
		tracker:   tracker,
		wallets:   wallets,
	}
}

// SignerCount is how many parties take part in one signing round: the
// tss-lib threshold plus one.
func (c *Ceremony) SignerCount() int { return c.threshold + 1 }

// Run performs the key generation rounds, registers every party with the
// quorum tracker as it finishes, encrypts the resulting shares under the
// given password and registers the wallet.
func (c *Ceremony) Run(ctx context.Context, keygenID, walletName, password string) (*Result, error) {
	if c.parties < 2 || c.threshold < 1 || c.threshold >= c.parties {
		return nil, fmt.Errorf("invalid ceremony shape t=%d n=%d", c.threshold, c.parties)
	}

	if err := c.tracker.Create(ctx, dto.CreateKeygenRequest{
		KeygenID:        keygenID,
		NumberOfMembers: c.parties,
		Threshold:       c.threshold,
		WalletName:      walletName,
	}); err != nil {
		return nil, err
	}

	logger.Log.Infof("starting local keygen ceremony %s with %d parties, threshold %d", keygenID, c.parties, c.threshold)

	partyIDs := tsslib.GenerateTestPartyIDs(c.parties)
	outCh := make(chan tsslib.Message, c.parties*c.parties)
	endCh := make(chan *ecdsakeygen.LocalPartySaveData, c.parties)
	errCh := make(chan error, c.parties*c.parties)

	parties := make(map[string]tsslib.Party, c.parties)
	for _, pID := range partyIDs {
		params := tsslib.NewParameters(tsslib.S256(), tsslib.NewPeerContext(partyIDs), pID, c.parties, c.threshold)
		parties[pID.Id] = ecdsakeygen.NewLocalParty(params, outCh, endCh)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, pID := range partyIDs {
		p := parties[pID.Id]
		g.Go(func() error {
			if err := p.Start(); err != nil {
				return fmt.Errorf("party %s failed to start: %w", p.PartyID().Id, err)
			}
			return nil
		})
	}

	saveData := make([]*ecdsakeygen.LocalPartySaveData, 0, c.parties)
	for len(saveData) < c.parties {
		select {
		case msg := <-outCh:
			if err := relay(parties, partyIDs, msg, errCh); err != nil {
				abortErr := c.tracker.Abort(ctx, keygenID, err.Error())
				if abortErr != nil {
					logger.Log.Errorf("failed to abort keygen session %s: %v", keygenID, abortErr)
				}
				return nil, err
			}
		case err := <-errCh:
			abortErr := c.tracker.Abort(ctx, keygenID, err.Error())
			if abortErr != nil {
				logger.Log.Errorf("failed to abort keygen session %s: %v", keygenID, abortErr)
			}
			return nil, err
		case save := <-endCh:
			saveData = append(saveData, save)
			member := dto.KeygenMember{
				PartyID:   len(saveData),
				PartyName: fmt.Sprintf("party-%d", len(saveData)),
			}
			if _, err := c.tracker.Join(ctx, keygenID, member); err != nil {
				return nil, err
			}
		case <-gctx.Done():
			abortErr := c.tracker.Abort(ctx, keygenID, gctx.Err().Error())
			if abortErr != nil {
				logger.Log.Errorf("failed to abort keygen session %s: %v", keygenID, abortErr)
			}
			return nil, gctx.Err()
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pubKey := saveData[0].ECDSAPub
	pubkeyHex := hex.EncodeToString(pubKey.X().Bytes()) + hex.EncodeToString(pubKey.Y().Bytes())
	logger.Log.Infof("keygen ceremony %s produced public key %s", keygenID, pubkeyHex)

	encrypted := make([]dto.EncryptedKeygenWithScheme, 0, len(saveData))
	for _, sd := range saveData {
		shareBytes, err := json.Marshal(sd)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal key share: %w", err)
		}
		seed := make([]byte, 32)
		if _, err := rand.Read(seed); err != nil {
			return nil, fmt.Errorf("failed to generate nonce seed: %w", err)
		}
		envelope, err := c.cipher.EncryptShare(password, pubkeyHex, shareBytes, seed)
		if err != nil {
			return nil, err
		}
		encrypted = append(encrypted, dto.EncryptedKeygenWithScheme{
			EncryptedLocalKey: envelope,
			KeyScheme:         dto.ECDSA,
		})
	}

	members := make([]dto.KeygenMember, 0, c.parties)
	for i := 0; i < c.parties; i++ {
		members = append(members, dto.KeygenMember{PartyID: i + 1, PartyName: fmt.Sprintf("party-%d", i+1)})
	}
	wallet, err := c.wallets.Register(ctx, dto.RegisterHotWalletRequest{
		KeygenID:        keygenID,
		NumberOfMembers: c.parties,
		Threshold:       c.threshold,
		WalletName:      walletName,
		PartyID:         1,
		Members:         members,
		EncryptedKeygenResult: dto.EncryptedKeygenResult{
			PartyID:                   1,
			EncryptedKeygenWithScheme: encrypted,
		},
		WalletCreationConfig: dto.WalletCreationConfig{
			Pubkeys: []dto.WalletCreationConfigPubkey{{Pubkey: pubkeyHex, KeyScheme: dto.ECDSA}},
		},
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		KeygenID:  keygenID,
		WalletID:  wallet.ID,
		PubkeyHex: pubkeyHex,
		PartyIDs:  partyIDs,
		SaveData:  saveData,
		Encrypted: encrypted,
	}, nil
}

// SignHash runs the signing rounds for one hash among threshold+1 parties
// and returns each signer's partial payload, base64 JSON common.SignatureData,
// ready for submission to the aggregator.
func (c *Ceremony) SignHash(ctx context.Context, res *Result, hashHex string) ([]string, error) {
	digest, err := hex.DecodeString(hashHex)
	if err != nil {
		return nil, fmt.Errorf("invalid hash hex: %w", err)
	}
	msgToSign := new(big.Int).SetBytes(digest)

	signerCount := c.threshold + 1
	signerIDs := tsslib.SortPartyIDs(append(tsslib.UnSortedPartyIDs{}, res.PartyIDs[:signerCount]...))

	outCh := make(chan tsslib.Message, signerCount*signerCount)
	endCh := make(chan *common.SignatureData, signerCount)
	errCh := make(chan error, signerCount*signerCount)

	// Save data arrives from keygen in completion order; match each signer
	// to its share by ShareID.
	saveByShare := make(map[string]*ecdsakeygen.LocalPartySaveData, len(res.SaveData))
	for _, sd := range res.SaveData {
		saveByShare[sd.ShareID.String()] = sd
	}

	signers := make(map[string]tsslib.Party, signerCount)
	for _, pID := range signerIDs {
		sd, ok := saveByShare[pID.KeyInt().String()]
		if !ok {
			return nil, fmt.Errorf("no key share found for signer %s", pID.Id)
		}
		params := tsslib.NewParameters(tsslib.S256(), tsslib.NewPeerContext(signerIDs), pID, signerCount, c.threshold)
		signers[pID.Id] = ecdsasigning.NewLocalParty(msgToSign, params, *sd, outCh, endCh)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, pID := range signerIDs {
		p := signers[pID.Id]
		g.Go(func() error {
			if err := p.Start(); err != nil {
				return fmt.Errorf("signer %s failed to start: %w", p.PartyID().Id, err)
			}
			return nil
		})
	}

	payloads := make([]string, 0, signerCount)
	for len(payloads) < signerCount {
		select {
		case msg := <-outCh:
			if err := relay(signers, signerIDs, msg, errCh); err != nil {
				return nil, err
			}
		case err := <-errCh:
			return nil, err
		case sig := <-endCh:
			raw, err := json.Marshal(sig)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal signature part: %w", err)
			}
			payloads = append(payloads, base64.StdEncoding.EncodeToString(raw))
		case <-gctx.Done():
			return nil, gctx.Err()
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return payloads, nil
}

// relay routes one in-process message to its destinations, parsing it back
// through the wire format exactly as a network transport would. Delivery
// errors surface on errCh; the round loops select on it and abort.
func relay(parties map[string]tsslib.Party, all tsslib.SortedPartyIDs, msg tsslib.Message, errCh chan<- error) error {
	bz, _, err := msg.WireBytes()
	if err != nil {
		return fmt.Errorf("failed to get wire bytes: %w", err)
	}
	pMsg, err := tsslib.ParseWireMessage(bz, msg.GetFrom(), msg.IsBroadcast())
	if err != nil {
		return fmt.Errorf("failed to parse wire message: %w", err)
	}

	dest := msg.GetTo()
	if dest == nil {
		for _, pID := range all {
			if pID.Id == msg.GetFrom().Id {
				continue
			}
			deliver(parties[pID.Id], pMsg, errCh)
		}
		return nil
	}
	for _, pID := range dest {
		if pID.Id == msg.GetFrom().Id {
			continue
		}
		deliver(parties[pID.Id], pMsg, errCh)
	}
	return nil
}

// receiver is the slice of tsslib.Party that message delivery needs.
type receiver interface {
	Update(msg tsslib.ParsedMessage) (bool, *tsslib.Error)
	PartyID() *tsslib.PartyID
}

func deliver(p receiver, msg tsslib.ParsedMessage, errCh chan<- error) {
	// Update may block on round progression, so deliveries run concurrently.
	go func() {
		if _, err := p.Update(msg); err != nil {
			select {
			case errCh <- fmt.Errorf("party %s failed to process message: %w", p.PartyID().Id, err):
			default:
			}
		}
	}()
}
