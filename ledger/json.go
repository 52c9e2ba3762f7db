package ledger

import (
	"encoding/json"

	"ledgerclient/keys"
)

// Interface-typed key fields are tagged "-" and carried by the shadow structs
// below through keys.MarshalJSON.

func (c CryptoCreate) MarshalJSON() ([]byte, error) {
	type alias CryptoCreate
	k, err := keys.MarshalJSON(c.Key)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		alias
		Key json.RawMessage `json:"key"`
	}{alias(c), k})
}

func (c *CryptoCreate) UnmarshalJSON(data []byte) error {
	type alias CryptoCreate
	aux := struct {
		*alias
		Key json.RawMessage `json:"key"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	k, err := keys.UnmarshalJSON(aux.Key)
	if err != nil {
		return err
	}
	c.Key = k
	return nil
}

func (c CryptoUpdate) MarshalJSON() ([]byte, error) {
	type alias CryptoUpdate
	k, err := keys.MarshalJSON(c.Key)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		alias
		Key json.RawMessage `json:"key"`
	}{alias(c), k})
}

func (c *CryptoUpdate) UnmarshalJSON(data []byte) error {
	type alias CryptoUpdate
	aux := struct {
		*alias
		Key json.RawMessage `json:"key"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	k, err := keys.UnmarshalJSON(aux.Key)
	if err != nil {
		return err
	}
	c.Key = k
	return nil
}

func (c ContractCreate) MarshalJSON() ([]byte, error) {
	type alias ContractCreate
	k, err := keys.MarshalJSON(c.AdminKey)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		alias
		AdminKey json.RawMessage `json:"adminKey"`
	}{alias(c), k})
}

func (c *ContractCreate) UnmarshalJSON(data []byte) error {
	type alias ContractCreate
	aux := struct {
		*alias
		AdminKey json.RawMessage `json:"adminKey"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	k, err := keys.UnmarshalJSON(aux.AdminKey)
	if err != nil {
		return err
	}
	c.AdminKey = k
	return nil
}

func (c ContractUpdate) MarshalJSON() ([]byte, error) {
	type alias ContractUpdate
	k, err := keys.MarshalJSON(c.AdminKey)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		alias
		AdminKey json.RawMessage `json:"adminKey"`
	}{alias(c), k})
}

func (c *ContractUpdate) UnmarshalJSON(data []byte) error {
	type alias ContractUpdate
	aux := struct {
		*alias
		AdminKey json.RawMessage `json:"adminKey"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	k, err := keys.UnmarshalJSON(aux.AdminKey)
	if err != nil {
		return err
	}
	c.AdminKey = k
	return nil
}

func (a AccountInfo) MarshalJSON() ([]byte, error) {
	type alias AccountInfo
	k, err := keys.MarshalJSON(a.Key)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		alias
		Key json.RawMessage `json:"key"`
	}{alias(a), k})
}

func (a *AccountInfo) UnmarshalJSON(data []byte) error {
	type alias AccountInfo
	aux := struct {
		*alias
		Key json.RawMessage `json:"key"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	k, err := keys.UnmarshalJSON(aux.Key)
	if err != nil {
		return err
	}
	a.Key = k
	return nil
}

func (c ContractInfo) MarshalJSON() ([]byte, error) {
	type alias ContractInfo
	k, err := keys.MarshalJSON(c.AdminKey)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		alias
		AdminKey json.RawMessage `json:"adminKey"`
	}{alias(c), k})
}

func (c *ContractInfo) UnmarshalJSON(data []byte) error {
	type alias ContractInfo
	aux := struct {
		*alias
		AdminKey json.RawMessage `json:"adminKey"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	k, err := keys.UnmarshalJSON(aux.AdminKey)
	if err != nil {
		return err
	}
	c.AdminKey = k
	return nil
}
