package swredis

// ScriptHash is the SHA1 that script.Run sends with EVALSHA.
var ScriptHash = redisAllowScript.Hash()
